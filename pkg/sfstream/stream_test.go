package sfstream

import (
	"path/filepath"
	"testing"
	"time"

	"sfio/internal/sfheader"
)

const testTimeout = 2 * time.Second

func waitForState(t *testing.T, get func() State, want State) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if get() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, got %v", want, get())
}

func TestWriterThenReaderRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stream.wav")
	const vecSize = 64
	const totalFrames = 640

	w := NewWriter(vecSize)

	w.Open(WriteOpenOptions{
		Filename:       path,
		Format:         sfheader.WAVE,
		Channels:       1,
		BytesPerSample: 2,
		SampleRate:     44100,
	})
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	block := make([]float32, vecSize)
	for i := range block {
		block[i] = 0.1
	}
	for written := 0; written < totalFrames; written += vecSize {
		w.Perform([][]float32{block}, vecSize)
	}

	// Close blocks until the worker has drained the FIFO, finalized the
	// header, and closed the file, unlike Stop which only flips the
	// lifecycle state and lets the worker catch up asynchronously.
	w.Close()

	if got := w.ItemsWritten(); got != totalFrames {
		t.Fatalf("ItemsWritten = %d, want %d", got, totalFrames)
	}

	r := NewReader(vecSize)
	defer r.Close()

	r.Open(OpenOptions{Filename: path})
	waitForState(t, r.State, StateStartup)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var framesRead int64
	out := [][]float32{make([]float32, vecSize)}
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if r.State() != StateStream {
			break
		}
		r.Perform(out, vecSize)
		framesRead += vecSize
		if framesRead > totalFrames+int64(vecSize) {
			break
		}
	}

	select {
	case <-r.Done():
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for Done")
	}
}

func TestReaderStartWithoutOpenFails(t *testing.T) {
	t.Parallel()

	r := NewReader(64)
	defer r.Close()

	if err := r.Start(); err == nil {
		t.Fatal("expected error calling Start without Open")
	}
}

func TestWriterStartWithoutOpenFails(t *testing.T) {
	t.Parallel()

	w := NewWriter(64)
	defer w.Close()

	if err := w.Start(); err == nil {
		t.Fatal("expected error calling Start without Open")
	}
}

func TestReaderOpenMissingFileRecordsError(t *testing.T) {
	t.Parallel()

	r := NewReader(64)
	defer r.Close()

	r.Open(OpenOptions{Filename: filepath.Join(t.TempDir(), "missing.wav")})

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) && r.Err() == nil {
		time.Sleep(time.Millisecond)
	}
	if r.Err() == nil {
		t.Fatal("expected Err() to be set after opening a missing file")
	}
}

func TestFifoNeverReportsFullAsEmpty(t *testing.T) {
	t.Parallel()

	f := newFifo(16)
	f.reset(16, 16)

	// Fill to one byte short of capacity.
	f.produce(make([]byte, 15))
	if f.head == f.tail {
		t.Fatal("fifo reached head==tail while holding data")
	}
	if f.free() != 0 {
		t.Errorf("free() = %d, want 0", f.free())
	}

	out := make([]byte, 15)
	f.consume(out, 15)
	if f.head != f.tail {
		t.Fatal("fifo should be empty (head==tail) after draining everything")
	}
	if f.avail() != 0 {
		t.Errorf("avail() = %d, want 0", f.avail())
	}
}

func TestFifoWrapAround(t *testing.T) {
	t.Parallel()

	f := newFifo(8)
	f.reset(8, 8)

	f.produce([]byte{1, 2, 3, 4, 5})
	out := make([]byte, 3)
	f.consume(out, 3)

	f.produce([]byte{6, 7, 8}) // wraps around the end of the buffer

	remaining := make([]byte, 5)
	f.consume(remaining, 5)

	want := []byte{4, 5, 6, 7, 8}
	for i := range want {
		if remaining[i] != want[i] {
			t.Fatalf("got % x, want % x", remaining, want)
		}
	}
}
