package sfweb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sfio/pkg/sfile"
	"sfio/pkg/sfstream"
	"sfio/sflog"
)

func newTestReader(t *testing.T) *sfstream.Reader {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	vecs := [][]float32{make([]float32, 64)}
	if _, _, err := sfile.Write(path, vecs, sfile.WriteOptions{Bytes: 2, SampleRate: 44100}); err != nil {
		t.Fatalf("sfile.Write: %v", err)
	}

	r := sfstream.NewReader(32)
	r.Open(sfstream.OpenOptions{Filename: path})
	if err := r.Start(); err != nil {
		t.Fatalf("Reader.Start: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestServerSnapshot(t *testing.T) {
	t.Parallel()

	reader := newTestReader(t)
	srv := NewServer(reader, 0, sflog.Nop{})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && reader.State() != sfstream.StateStream {
		time.Sleep(time.Millisecond)
	}

	payload := srv.snapshot(123.5)
	if payload.BytesPerSec != 123.5 {
		t.Fatalf("BytesPerSec = %v, want 123.5", payload.BytesPerSec)
	}
	if payload.State == "" {
		t.Fatal("State is empty")
	}
}

func TestServerHandleAPIStatus(t *testing.T) {
	t.Parallel()

	reader := newTestReader(t)
	srv := NewServer(reader, 0, sflog.Nop{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.handleAPIStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload StatusPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if payload.Filename == "" {
		t.Fatal("Filename is empty")
	}
}

func TestServerHandleIndex(t *testing.T) {
	t.Parallel()

	reader := newTestReader(t)
	srv := NewServer(reader, 0, sflog.Nop{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty index body")
	}
}

func TestServerHandleIndexNotFound(t *testing.T) {
	t.Parallel()

	reader := newTestReader(t)
	srv := NewServer(reader, 0, sflog.Nop{})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
