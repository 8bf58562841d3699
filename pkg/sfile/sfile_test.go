package sfile

import (
	"os"
	"path/filepath"
	"testing"

	"sfio/internal/sfheader"
)

func TestWriteReadRoundTripWAVE(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	left := make([]float32, 100)
	right := make([]float32, 100)
	for i := range left {
		left[i] = float32(i) / 100
		right[i] = -float32(i) / 100
	}

	writeResult, written, err := Write(path, [][]float32{left, right}, WriteOptions{
		Bytes:      2,
		SampleRate: 44100,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written != 100 {
		t.Fatalf("written = %d, want 100", written)
	}
	if writeResult.Channels != 2 || writeResult.SampleRate != 44100 {
		t.Fatalf("unexpected write result: %+v", writeResult)
	}

	readLeft := make([]float32, 100)
	readRight := make([]float32, 100)
	readResult, read, err := Read(path, [][]float32{readLeft, readRight}, ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read != 100 {
		t.Fatalf("read = %d, want 100", read)
	}
	if readResult.SampleRate != 44100 || readResult.Channels != 2 {
		t.Fatalf("unexpected read result: %+v", readResult)
	}

	for i := range left {
		if diff := left[i] - readLeft[i]; diff > 1.0/32768 || diff < -1.0/32768 {
			t.Errorf("left[%d] = %v, want ~%v", i, readLeft[i], left[i])
		}
	}
}

func TestWriteReadRoundTripAIFF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.aif")

	mono := []float32{0.0, 0.25, -0.25, 0.5, -0.5, 1.0, -1.0}

	_, _, err := Write(path, [][]float32{mono}, WriteOptions{Bytes: 3, SampleRate: 48000})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := make([]float32, len(mono))
	result, read, err := Read(path, [][]float32{out}, ReadOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read != int64(len(mono)) {
		t.Fatalf("read = %d, want %d", read, len(mono))
	}
	if !result.BigEndian {
		t.Error("AIFF result should report big-endian")
	}
}

func TestReadResizeClipsToMaxSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	src := make([]float32, 1000)
	if _, _, err := Write(path, [][]float32{src}, WriteOptions{Bytes: 2, SampleRate: 44100}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var dst []float32
	_, read, err := Read(path, [][]float32{dst}, ReadOptions{Resize: true, MaxSize: 50})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read != 50 {
		t.Fatalf("read = %d, want 50 (clipped)", read)
	}
}

func TestWriteRejectsFloatAIFF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.aif")

	_, _, err := Write(path, [][]float32{{0}}, WriteOptions{Bytes: 4})
	if err == nil {
		t.Fatal("expected error writing 32-bit float AIFF")
	}
}

func TestRawOverrideSkipsHeaderParsing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "headerless.raw")

	payload := []byte{0, 0, 1, 0, 2, 0, 3, 0}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := make([]float32, 4)
	_, read, err := Read(path, [][]float32{out}, ReadOptions{
		Raw: &RawOverride{HeaderSize: 0, Channels: 1, BytesPerSample: 2, BigEndian: false},
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read != 4 {
		t.Fatalf("read = %d, want 4", read)
	}
}

func TestWriteInvalidBytesPerSample(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wav")

	_, _, err := Write(path, [][]float32{{0}}, WriteOptions{Bytes: 5})
	if err == nil {
		t.Fatal("expected error for invalid bytes-per-sample")
	}
}

func TestFormatInferredFromSuffix(t *testing.T) {
	t.Parallel()

	if got := resolveFormat(nil, "a.aiff"); got != sfheader.AIFF {
		t.Errorf("resolveFormat(.aiff) = %v, want AIFF", got)
	}
	if got := resolveFormat(nil, "a.snd"); got != sfheader.NeXT {
		t.Errorf("resolveFormat(.snd) = %v, want NeXT", got)
	}
	if got := resolveFormat(nil, "a.wav"); got != sfheader.WAVE {
		t.Errorf("resolveFormat(.wav) = %v, want WAVE", got)
	}
}
