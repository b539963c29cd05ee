package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// V4L2Platform はLinux環境のV4L2デバイスに対するPlatform実装
// デバイス情報の取得にはv4l2-ctl、画像の取得にはffmpegを使う
type V4L2Platform struct {
	logger *zap.SugaredLogger
}

// NewV4L2Platform は新しいV4L2Platformを作成する
func NewV4L2Platform(logger *zap.SugaredLogger) *V4L2Platform {
	return &V4L2Platform{logger: logger}
}

// EnumerateDevices は利用可能なビデオ入力デバイスを列挙する
func (p *V4L2Platform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []DeviceDescriptor
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !isDeviceAccessible(match) {
			continue
		}

		devices = append(devices, DeviceDescriptor{
			ID:    match,
			Label: p.deviceLabel(ctx, match),
			Kind:  KindVideoInput,
		})
	}

	return devices, nil
}

// Acquire は条件に合うライブストリームを取得する
// V4L2環境ではFacingはヒントに留まる（向きの異なるカメラを区別できないため）。
// DeviceIDが指定されていればそのデバイスを、無ければ先頭のデバイスを開く
func (p *V4L2Platform) Acquire(ctx context.Context, constraints Constraints) (Stream, error) {
	device := constraints.DeviceID
	if device == "" {
		devices, err := p.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("利用可能なデバイスがありません")
		}
		device = devices[0].ID
	}

	if !isDeviceAccessible(device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	caps := p.queryCapabilities(ctx, device)

	trackCtx, cancel := context.WithCancel(context.Background())
	track := &v4l2Track{
		logger: p.logger,
		device: device,
		width:  constraints.Width,
		height: constraints.Height,
		fps:    constraints.FPS,
		caps:   caps,
		ctx:    trackCtx,
		cancel: cancel,
	}

	p.logger.Infow("ストリームを取得",
		"device", device,
		"width", constraints.Width,
		"height", constraints.Height,
		"fps", constraints.FPS,
	)

	return &v4l2Stream{track: track}, nil
}

// queryCapabilities はv4l2-ctlのコントロール一覧からトラックの能力を調べる
func (p *V4L2Platform) queryCapabilities(ctx context.Context, device string) TrackCapabilities {
	caps := TrackCapabilities{MinFocusDistance: -1}

	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-ctrls")
	output, err := cmd.Output()
	if err != nil {
		p.logger.Warnw("コントロール一覧の取得に失敗", "device", device, "error", err)
		return caps
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "focus_absolute "):
			// focus_absoluteのmax値を接写能力の指標として使う
			// 値が大きいほど近距離にフォーカスできる
			if max, ok := parseControlMax(line); ok {
				caps.MinFocusDistance = max
			}
		case strings.HasPrefix(line, "focus_automatic_continuous "):
			caps.ContinuousFocus = true
		case strings.HasPrefix(line, "torch "), strings.HasPrefix(line, "flash_led_mode "):
			caps.Torch = true
		}
	}

	return caps
}

// deviceLabel はv4l2-ctlから実際のデバイス名を取得する
func (p *V4L2Platform) deviceLabel(ctx context.Context, device string) string {
	infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(infoCtx, "v4l2-ctl", "--device", device, "--info")
	output, err := cmd.Output()
	if err == nil {
		// "Card type" の行からカメラ名を抽出
		for _, line := range strings.Split(string(output), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Card type") {
				parts := strings.SplitN(line, ":", 2)
				if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
					return strings.TrimSpace(parts[1])
				}
			}
		}
	}

	// フォールバック: デバイス番号から生成
	return fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
}

// isDeviceAccessible はデバイスファイルが存在し読み取れるかチェックする
func isDeviceAccessible(device string) bool {
	matched, _ := regexp.MatchString(`^/dev/video\d+$`, device)
	if !matched {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	re := regexp.MustCompile(`video(\d+)`)
	matches := re.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}
	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}

// parseControlMax はv4l2-ctlのコントロール行からmax値を取り出す
// 例: focus_absolute 0x009a090a (int) : min=0 max=1023 step=1 default=68 value=68
func parseControlMax(line string) (float64, bool) {
	for _, field := range strings.Fields(line) {
		if strings.HasPrefix(field, "max=") {
			value, err := strconv.ParseFloat(strings.TrimPrefix(field, "max="), 64)
			if err != nil {
				return 0, false
			}
			return value, true
		}
	}
	return 0, false
}

// v4l2Stream はV4L2デバイス1台分のStream実装
type v4l2Stream struct {
	track *v4l2Track
}

// Track はストリーム唯一のビデオトラックを返す
func (s *v4l2Stream) Track() Track {
	return s.track
}

// Stop は保持する全トラックを解放する
func (s *v4l2Stream) Stop() {
	s.track.Stop()
}

// v4l2Track はV4L2デバイスのTrack実装
type v4l2Track struct {
	logger *zap.SugaredLogger
	device string
	width  int
	height int
	fps    int
	caps   TrackCapabilities

	// ストリーミング寿命の制御
	ctx    context.Context
	cancel context.CancelFunc

	frameOnce sync.Once
	frameCh   chan []byte

	stopOnce sync.Once
}

// Capabilities は取得時に調べた能力を返す
func (t *v4l2Track) Capabilities() TrackCapabilities {
	return t.caps
}

// Apply は制御変更をv4l2-ctl経由でデバイスに適用する
func (t *v4l2Track) Apply(ctx context.Context, controls Controls) error {
	if controls.Torch != nil {
		if err := t.setControl(ctx, "torch", boolValue(*controls.Torch)); err != nil {
			return err
		}
	}
	if controls.ContinuousFocus != nil {
		if err := t.setControl(ctx, "focus_automatic_continuous", boolValue(*controls.ContinuousFocus)); err != nil {
			return err
		}
	}
	return nil
}

// TriggerFocus は単写フォーカスを起動する
func (t *v4l2Track) TriggerFocus(ctx context.Context) error {
	return t.setControl(ctx, "auto_focus_start", "1")
}

// setControl はv4l2-ctlでコントロールを設定する
func (t *v4l2Track) setControl(ctx context.Context, control, value string) error {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", t.device, "--set-ctrl", fmt.Sprintf("%s=%s", control, value))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("コントロール %s の設定に失敗: %w", control, err)
	}
	return nil
}

// TakePhoto はffmpegでネイティブ解像度のJPEGを1枚撮影する
// 解像度を指定しないことでデバイスの静止画最大解像度に任せる
func (t *v4l2Track) TakePhoto(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-i", t.device,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2", // 高品質JPEG
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("静止画キャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// GrabFrame はライブプレビュー相当の1フレームをデコード済み画像として返す
func (t *v4l2Track) GrabFrame(ctx context.Context) (image.Image, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", t.width, t.height),
		"-i", t.device,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームグラブに失敗: %w (stderr: %s)", err, stderr.String())
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}

	return img, nil
}

// Frames はプレビュー用のJPEGフレームチャンネルを返す
// 最初の呼び出しでffmpegのMJPEGストリーミングを開始する
func (t *v4l2Track) Frames() <-chan []byte {
	t.frameOnce.Do(func() {
		t.frameCh = make(chan []byte, 10)
		go t.streamFrames()
	})
	return t.frameCh
}

// streamFrames はffmpegのMJPEG出力をフレーム単位に分割してチャンネルへ流す
func (t *v4l2Track) streamFrames() {
	defer close(t.frameCh)

	cmd := exec.CommandContext(t.ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", t.width, t.height),
		"-r", strconv.Itoa(t.fps),
		"-i", t.device,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.logger.Errorw("stdoutパイプの作成に失敗", "error", err)
		return
	}

	if err := cmd.Start(); err != nil {
		t.logger.Errorw("ffmpegの起動に失敗", "error", err)
		return
	}
	defer func() {
		_ = cmd.Wait() // コンテキストキャンセル時のエラーは無視
	}()

	buffer := make([]byte, 1024*1024)
	frameBuffer := bytes.Buffer{}

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		n, err := stdout.Read(buffer)
		if err != nil {
			return
		}
		frameBuffer.Write(buffer[:n])

		// JPEGマーカーで完全なフレームを切り出す
		data := frameBuffer.Bytes()
		for {
			frame, rest, ok := extractJPEGFrame(data)
			if !ok {
				// 完全なフレームがまだない。残りを次の読み取りへ持ち越す
				frameBuffer.Reset()
				frameBuffer.Write(rest)
				break
			}

			select {
			case t.frameCh <- frame:
			case <-t.ctx.Done():
				return
			}

			data = rest
			if len(data) == 0 {
				frameBuffer.Reset()
				break
			}
		}
	}
}

// extractJPEGFrame はバッファ先頭から完全なJPEGフレームを1枚切り出す
// 開始マーカー（FF D8）より前のバイトはフレームに含めず捨てる。
// 完全なフレームが無い場合は保持すべき残りデータとfalseを返す
func extractJPEGFrame(data []byte) (frame, rest []byte, ok bool) {
	startIdx := bytes.Index(data, []byte{0xFF, 0xD8})
	if startIdx == -1 {
		return nil, data, false
	}

	endIdx := bytes.Index(data[startIdx+2:], []byte{0xFF, 0xD9})
	if endIdx == -1 {
		return nil, data[startIdx:], false
	}

	endIdx += startIdx + 2 + 2 // マーカーのサイズを含める
	frame = make([]byte, endIdx-startIdx)
	copy(frame, data[startIdx:endIdx])
	return frame, data[endIdx:], true
}

// Stop はトラックを解放する。冪等
func (t *v4l2Track) Stop() {
	t.stopOnce.Do(func() {
		t.cancel()
		t.logger.Infow("トラックを解放", "device", t.device)
	})
}

// boolValue はV4L2コントロール用のブール値表現を返す
func boolValue(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
