// Command sfcli reads, writes, and streams soundfiles from the shell.
//
// Usage:
//
//	sfcli read [flags] filename
//	sfcli write [flags] filename
//	sfcli stream [flags] filename
package main

import (
	"fmt"
	"log/slog"
	"os"

	"sfio/pkg/sfconfig"
	"sfio/sflog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := sfconfig.Load("sfconfig.yaml")
	if err != nil {
		cfg = sfconfig.Default()
	}
	log := newLogger(cfg)

	switch os.Args[1] {
	case "read":
		err = runRead(os.Args[2:], log)
	case "write":
		err = runWrite(os.Args[2:], cfg, log)
	case "stream":
		err = runStream(os.Args[2:], cfg, log)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sfcli: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s {read|write|stream} [flags] filename\n", os.Args[0])
}

// newLogger builds the process-wide sflog.Logger from cfg.Log, falling back
// to a stderr text handler at info level.
func newLogger(cfg *sfconfig.Config) sflog.Logger {
	level := slog.LevelInfo
	var out *os.File = os.Stderr

	if parsed, perr := parseLevel(cfg.Log.Level); perr == nil {
		level = parsed
	}
	if cfg.Log.File != "" {
		if f, ferr := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); ferr == nil {
			out = f
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
