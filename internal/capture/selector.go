package capture

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// 選定時の短時間取得に使う低解像度の条件
// 取得コストとレイテンシを最小化する
const (
	probeWidth  = 320
	probeHeight = 240
	probeFPS    = 5
)

// SelectMacroDevice は最も接写に強いデバイスの識別子を返す
//
// 各候補デバイスを列挙順に短時間開き、報告される最短撮影距離を読み取って
// 走査中の最大値を追跡する。値が大きいほど近くにフォーカスできるとみなす。
// 更新は厳密な改善のみで行う（同値なら先に見たデバイスを保持する）。
// 後方のデバイスが上回る可能性があるため早期終了はせず、全件を走査する。
//
// デバイス単位の失敗（使用中・能力照会非対応）は「情報なし」として扱い、
// ログに残して走査を継続する。
//
// 戻り値: 最良デバイスの識別子。有効な距離を報告したデバイスが無ければ
// 先頭のビデオ入力デバイスの識別子。リストが空なら空文字列
func SelectMacroDevice(ctx context.Context, logger *zap.SugaredLogger, platform Platform, devices []DeviceDescriptor) string {
	best := ""
	bestDistance := -1.0

	for _, dev := range devices {
		if dev.Kind != KindVideoInput {
			continue
		}

		distance, err := probeFocusDistance(ctx, platform, dev.ID)
		if err != nil {
			logger.Warnw("デバイスの検査に失敗", "device", dev.ID, "error", err)
			continue
		}
		if distance < 0 {
			// 距離未報告のデバイスは候補にしない
			continue
		}

		// 厳密な改善のみ更新する。同値は先勝ち
		if distance > bestDistance {
			bestDistance = distance
			best = dev.ID
		}
	}

	if best != "" {
		logger.Infow("接写デバイスを選定", "device", best, "distance", bestDistance)
		return best
	}

	// 有効な距離を報告したデバイスが無ければ先頭のビデオ入力デバイスにフォールバック
	for _, dev := range devices {
		if dev.Kind == KindVideoInput {
			logger.Infow("有効な距離報告なし。先頭デバイスにフォールバック", "device", dev.ID)
			return dev.ID
		}
	}

	return ""
}

// probeFocusDistance はデバイスを短時間開いて最短撮影距離を読み取る
// 取得したストリームは成否に関わらず必ず解放する
func probeFocusDistance(ctx context.Context, platform Platform, deviceID string) (_ float64, err error) {
	stream, err := platform.Acquire(ctx, Constraints{
		DeviceID: deviceID,
		Width:    probeWidth,
		Height:   probeHeight,
		FPS:      probeFPS,
	})
	if err != nil {
		return 0, fmt.Errorf("検査用ストリームの取得に失敗: %w", err)
	}
	defer stream.Stop()

	caps := stream.Track().Capabilities()
	return caps.MinFocusDistance, nil
}
