package capture

import (
	"bytes"
	"testing"
)

// jpegFrame はテスト用の最小JPEGフレームを作る
func jpegFrame(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	return append(frame, 0xFF, 0xD9)
}

func TestExtractJPEGFrame_Complete(t *testing.T) {
	want := jpegFrame(0x01, 0x02, 0x03)

	frame, rest, ok := extractJPEGFrame(want)
	if !ok {
		t.Fatal("完全なフレームが切り出されるべきです")
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("フレームが一致しません: got %x, want %x", frame, want)
	}
	if len(rest) != 0 {
		t.Errorf("残りデータは空のはずです: got %x", rest)
	}
}

func TestExtractJPEGFrame_DropsLeadingJunk(t *testing.T) {
	// 開始マーカーより前のバイトはフレームに含めない
	want := jpegFrame(0x01, 0x02)
	data := append([]byte{0x00, 0x11, 0x22}, want...)

	frame, rest, ok := extractJPEGFrame(data)
	if !ok {
		t.Fatal("完全なフレームが切り出されるべきです")
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("先頭のゴミが混入しています: got %x, want %x", frame, want)
	}
	if !bytes.HasPrefix(frame, []byte{0xFF, 0xD8}) {
		t.Error("フレームが開始マーカーで始まっていません")
	}
	if len(rest) != 0 {
		t.Errorf("残りデータは空のはずです: got %x", rest)
	}
}

func TestExtractJPEGFrame_Incomplete(t *testing.T) {
	// 終了マーカーがまだ届いていない場合、開始マーカー以降を持ち越す
	data := []byte{0x00, 0xFF, 0xD8, 0x01, 0x02}

	frame, rest, ok := extractJPEGFrame(data)
	if ok {
		t.Fatal("不完全なフレームは切り出されないべきです")
	}
	if frame != nil {
		t.Errorf("フレームはnilのはずです: got %x", frame)
	}
	if !bytes.Equal(rest, []byte{0xFF, 0xD8, 0x01, 0x02}) {
		t.Errorf("開始マーカー以降が保持されるべきです: got %x", rest)
	}
}

func TestExtractJPEGFrame_NoStartMarker(t *testing.T) {
	data := []byte{0x00, 0x11, 0x22}

	_, rest, ok := extractJPEGFrame(data)
	if ok {
		t.Fatal("開始マーカーなしでは切り出されないべきです")
	}
	if !bytes.Equal(rest, data) {
		t.Errorf("データがそのまま保持されるべきです: got %x", rest)
	}
}

func TestExtractJPEGFrame_MultipleFrames(t *testing.T) {
	first := jpegFrame(0x01)
	second := jpegFrame(0x02)
	data := append(append([]byte{}, first...), second...)

	frame, rest, ok := extractJPEGFrame(data)
	if !ok {
		t.Fatal("1枚目のフレームが切り出されるべきです")
	}
	if !bytes.Equal(frame, first) {
		t.Errorf("1枚目が一致しません: got %x, want %x", frame, first)
	}

	frame, rest, ok = extractJPEGFrame(rest)
	if !ok {
		t.Fatal("2枚目のフレームが切り出されるべきです")
	}
	if !bytes.Equal(frame, second) {
		t.Errorf("2枚目が一致しません: got %x, want %x", frame, second)
	}
	if len(rest) != 0 {
		t.Errorf("残りデータは空のはずです: got %x", rest)
	}
}

func TestParseControlMax(t *testing.T) {
	line := "focus_absolute 0x009a090a (int)    : min=0 max=1023 step=1 default=68 value=68"

	max, ok := parseControlMax(line)
	if !ok {
		t.Fatal("max値が取り出せるべきです")
	}
	if max != 1023 {
		t.Errorf("max値が一致しません: got %v, want 1023", max)
	}

	if _, ok := parseControlMax("sharpness 0x0098091b (int) : min=0 step=1"); ok {
		t.Error("max欄が無い行では失敗すべきです")
	}
}

func TestExtractDeviceNumber(t *testing.T) {
	if num := extractDeviceNumber("/dev/video12"); num != 12 {
		t.Errorf("デバイス番号が一致しません: got %d, want 12", num)
	}
	if num := extractDeviceNumber("/dev/null"); num != 0 {
		t.Errorf("番号なしのパスは0のはずです: got %d", num)
	}
}
