package sfconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sfio.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Stream.BufferBytes != defaultBufferBytes {
		t.Errorf("BufferBytes = %d, want %d", cfg.Stream.BufferBytes, defaultBufferBytes)
	}
	if cfg.Stream.ReadSize != defaultReadSize {
		t.Errorf("ReadSize = %d, want %d", cfg.Stream.ReadSize, defaultReadSize)
	}
	if cfg.DefaultSampleRate != defaultSampleRate {
		t.Errorf("DefaultSampleRate = %d, want %d", cfg.DefaultSampleRate, defaultSampleRate)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadParsesExplicitValues(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
stream:
  buffer_bytes: 131072
  read_size: 8192
  write_size: 8192
default_sample_rate: 48000
log:
  level: debug
  file: /tmp/sfio.log
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Stream.BufferBytes != 131072 {
		t.Errorf("BufferBytes = %d, want 131072", cfg.Stream.BufferBytes)
	}
	if cfg.DefaultSampleRate != 48000 {
		t.Errorf("DefaultSampleRate = %d, want 48000", cfg.DefaultSampleRate)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/sfio.log" {
		t.Errorf("Log = %+v, unexpected", cfg.Log)
	}
}

func TestLoadClampsOutOfRangeBufferBytes(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "stream:\n  buffer_bytes: 999999999999\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.BufferBytes != maxBufferBytes {
		t.Errorf("BufferBytes = %d, want clamped to %d", cfg.Stream.BufferBytes, maxBufferBytes)
	}
}

func TestLoadClampsUndersizedReadSize(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "stream:\n  read_size: 1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.ReadSize != minReadWrite {
		t.Errorf("ReadSize = %d, want clamped to %d", cfg.Stream.ReadSize, minReadWrite)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "stream: [this is not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
