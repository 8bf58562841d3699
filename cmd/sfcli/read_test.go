package main

import (
	"path/filepath"
	"testing"

	"sfio/pkg/sfile"
)

func TestParseRawOverride(t *testing.T) {
	t.Parallel()

	got, err := parseRawOverride("44,2,3,b")
	if err != nil {
		t.Fatalf("parseRawOverride: %v", err)
	}
	want := &sfile.RawOverride{HeaderSize: 44, Channels: 2, BytesPerSample: 3, BigEndian: true}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", *got, *want)
	}
}

func TestParseRawOverrideLittleEndian(t *testing.T) {
	t.Parallel()

	got, err := parseRawOverride("0,1,2,l")
	if err != nil {
		t.Fatalf("parseRawOverride: %v", err)
	}
	if got.BigEndian {
		t.Fatal("BigEndian = true, want false")
	}
}

func TestParseRawOverrideInvalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"44,2,3",        // too few fields
		"x,2,3,b",       // bad header size
		"44,x,3,b",      // bad channels
		"44,2,x,b",      // bad bytes per sample
		"44,2,3,middle", // bad endian token
	}
	for _, c := range cases {
		if _, err := parseRawOverride(c); err == nil {
			t.Errorf("parseRawOverride(%q): expected error, got nil", c)
		}
	}
}

func TestChannelCountWithRaw(t *testing.T) {
	t.Parallel()

	n, err := channelCount("does-not-exist.raw", &sfile.RawOverride{Channels: 3})
	if err != nil {
		t.Fatalf("channelCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("channelCount = %d, want 3", n)
	}
}

func TestChannelCountFromHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	vecs := [][]float32{make([]float32, 16), make([]float32, 16), make([]float32, 16)}
	if _, _, err := sfile.Write(path, vecs, sfile.WriteOptions{Bytes: 2, SampleRate: 44100}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := channelCount(path, nil)
	if err != nil {
		t.Fatalf("channelCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("channelCount = %d, want 3", n)
	}
}

func TestChannelCountMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := channelCount(filepath.Join(t.TempDir(), "missing.wav"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
