// Package sftui is an interactive terminal monitor for a live soundfile
// stream: current file, format, a FIFO fill-percentage bar, lifecycle
// state, frames processed, and the last error. 'q' or Esc exits.
package sftui

import (
	"fmt"
	"time"

	"github.com/nsf/termbox-go"

	"sfio/pkg/sfstream"
)

const (
	colDef    = termbox.ColorDefault
	colWhite  = termbox.ColorWhite
	colRed    = termbox.ColorRed
	colGreen  = termbox.ColorGreen
	colYellow = termbox.ColorYellow
	colCyan   = termbox.ColorCyan
)

// Run blocks, rendering reader's telemetry until the user presses q or Esc.
func Run(reader *sfstream.Reader) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("sftui: init: %w", err)
	}
	defer termbox.Close()

	termbox.SetInputMode(termbox.InputEsc)

	events := make(chan termbox.Event)
	go func() {
		for {
			events <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	draw(reader)

	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case termbox.EventKey:
				if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
					return nil
				}
			case termbox.EventResize:
				draw(reader)
			}
		case <-ticker.C:
			draw(reader)
		}
	}
}

func draw(reader *sfstream.Reader) {
	_ = termbox.Clear(colDef, colDef)

	snap := reader.Snapshot()

	printTB(0, 0, colCyan, colDef, "sfio stream monitor")
	printTB(0, 1, colWhite, colDef, fmt.Sprintf("File:   %s", snap.Filename))
	printTB(0, 2, colWhite, colDef, fmt.Sprintf("Format: %s", snap.Format))
	printTB(0, 3, colWhite, colDef, fmt.Sprintf("State:  %s", snap.State))
	printTB(0, 4, colWhite, colDef, fmt.Sprintf("Frames: %d", snap.FramesDecoded))
	printTB(0, 5, colDef, colDef, "----------------------------------------------------")

	drawFifoBar(7, snap.FifoFillPct)

	if snap.Err != nil {
		printTB(0, 9, colRed, colDef, fmt.Sprintf("Error: %v", snap.Err))
	}

	printTB(0, 11, colDef, colDef, "'q' or Esc to quit.")

	termbox.Flush()
}

func drawFifoBar(yPos int, fillPct float64) {
	const (
		barWidth = 60
		xPos     = 2
	)

	if fillPct < 0 {
		fillPct = 0
	}
	if fillPct > 100 {
		fillPct = 100
	}
	filled := int(fillPct / 100 * float64(barWidth))

	printTB(xPos, yPos, colYellow, colDef, fmt.Sprintf("FIFO [%5.1f%%] ", fillPct))

	startX := xPos + 16
	for i := range barWidth {
		var barChar rune
		if i < filled {
			barChar = '█'
		} else {
			barChar = '░'
		}
		termbox.SetCell(startX+i, yPos, barChar, colGreen, colDef)
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
