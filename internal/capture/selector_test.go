package capture

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// videoDevices はテスト用のビデオ入力デバイス一覧を作る
func videoDevices(ids ...string) []DeviceDescriptor {
	devices := make([]DeviceDescriptor, 0, len(ids))
	for i, id := range ids {
		devices = append(devices, DeviceDescriptor{
			ID:    id,
			Label: fmt.Sprintf("テストカメラ %d", i+1),
			Kind:  KindVideoInput,
		})
	}
	return devices
}

func TestSelectMacroDevice_StrictMaximum(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	// 距離 [0.1, 0.3, 0.3, 0.05] のとき、厳密な最大に最初に到達したBが選ばれる
	// （後方の同値Cは置き換えない）
	devices := videoDevices("A", "B", "C", "D")
	platform := NewMockPlatform(devices)
	platform.SetFocusDistance("A", 0.1)
	platform.SetFocusDistance("B", 0.3)
	platform.SetFocusDistance("C", 0.3)
	platform.SetFocusDistance("D", 0.05)

	selected := SelectMacroDevice(ctx, logger, platform, devices)
	if selected != "B" {
		t.Errorf("期待したデバイスが選ばれていません: got %s, want B", selected)
	}
}

func TestSelectMacroDevice_ResultInInputList(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	devices := videoDevices("/dev/video0", "/dev/video2", "/dev/video4")
	platform := NewMockPlatform(devices)
	platform.SetFocusDistance("/dev/video2", 1.5)

	selected := SelectMacroDevice(ctx, logger, platform, devices)

	found := false
	for _, dev := range devices {
		if dev.ID == selected {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("選定結果が入力リストに含まれていません: %s", selected)
	}
}

func TestSelectMacroDevice_NoReportedDistance(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	// どのデバイスも距離を報告しない場合は先頭デバイスにフォールバック
	devices := videoDevices("A", "B", "C")
	platform := NewMockPlatform(devices)

	selected := SelectMacroDevice(ctx, logger, platform, devices)
	if selected != "A" {
		t.Errorf("先頭デバイスへのフォールバックが働いていません: got %s, want A", selected)
	}
}

func TestSelectMacroDevice_EmptyList(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	platform := NewMockPlatform(nil)

	selected := SelectMacroDevice(ctx, logger, platform, nil)
	if selected != "" {
		t.Errorf("空リストでは空文字列を返すべきです: got %s", selected)
	}
}

func TestSelectMacroDevice_ProbeFailureContinues(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	// デバイスBの検査が失敗しても走査は中断せず、残りから選定する
	devices := videoDevices("A", "B", "C")
	platform := NewMockPlatform(devices)
	platform.SetFocusDistance("A", 0.2)
	platform.SetDeviceError("B", fmt.Errorf("デバイスは使用中です"))
	platform.SetFocusDistance("C", 0.8)

	selected := SelectMacroDevice(ctx, logger, platform, devices)
	if selected != "C" {
		t.Errorf("検査失敗デバイスを飛ばして選定すべきです: got %s, want C", selected)
	}
}

func TestSelectMacroDevice_ReleasesEveryProbe(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	devices := videoDevices("A", "B", "C", "D")
	platform := NewMockPlatform(devices)
	platform.SetFocusDistance("A", 0.1)
	platform.SetFocusDistance("B", 0.3)
	platform.SetDeviceError("C", fmt.Errorf("能力照会には対応していません"))
	platform.SetFocusDistance("D", 0.05)

	SelectMacroDevice(ctx, logger, platform, devices)

	// 検査で開いたストリームは成否に関わらず全て解放される
	if platform.AcquireCount() != platform.ReleaseCount() {
		t.Errorf("取得と解放の回数が一致しません: acquired %d, released %d",
			platform.AcquireCount(), platform.ReleaseCount())
	}
	if platform.AcquireCount() != 3 {
		t.Errorf("失敗デバイスを除く3台が検査されるはずです: got %d", platform.AcquireCount())
	}
}

func TestSelectMacroDevice_ProbesWithLowResolution(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	devices := videoDevices("A")
	platform := NewMockPlatform(devices)
	platform.SetFocusDistance("A", 0.5)

	SelectMacroDevice(ctx, logger, platform, devices)

	constraints := platform.Constraints()
	if len(constraints) != 1 {
		t.Fatalf("検査は1回のはずです: got %d", len(constraints))
	}

	// 検査は低解像度でデバイス完全一致の条件を使う
	probe := constraints[0]
	if probe.DeviceID != "A" {
		t.Errorf("デバイス完全一致の条件になっていません: got %s", probe.DeviceID)
	}
	if probe.Width != probeWidth || probe.Height != probeHeight {
		t.Errorf("低解像度の条件になっていません: got %dx%d", probe.Width, probe.Height)
	}
}
