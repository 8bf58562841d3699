package sfstream

import (
	"fmt"
	"os"
	"sync"

	"sfio/internal/sfcodec"
	"sfio/internal/sfheader"
	"sfio/sflog"
)

// WriteOpenOptions configures a Writer.Open call.
type WriteOpenOptions struct {
	Filename       string
	Format         sfheader.Format
	Channels       int
	BytesPerSample int
	BigEndian      bool
	SampleRate     int32
}

// Writer is a background-threaded streaming soundfile writer, the write
// counterpart to Reader. The zero value is not usable; construct with
// NewWriter.
type Writer struct {
	mu          sync.Mutex
	requestCond *sync.Cond
	answerCond  *sync.Cond

	nominalVecFrames      int
	bufferBytesPerChannel int
	writeSize             int

	fifo fifo

	state State
	req   request

	filename       string
	format         sfheader.Format
	channels       int
	bytesPerSample int
	bigEndian      bool
	sampleRate     int32

	file         *os.File
	headerSize   int64
	frameBytes   int
	itemsWritten int64
	normFactor   float32
	sigPeriod    int
	sigCounter   int
	scratch      []byte

	err error
	log sflog.Logger

	workerDone chan struct{}
}

// WriteOption configures a Writer at construction time.
type WriteOption func(*Writer)

// WithWriterBufferBytesPerChannel overrides the per-channel FIFO capacity.
func WithWriterBufferBytesPerChannel(n int) WriteOption {
	return func(w *Writer) { w.bufferBytesPerChannel = n }
}

// WithWriteSize overrides the worker's per-syscall write size.
func WithWriteSize(n int) WriteOption {
	return func(w *Writer) { w.writeSize = n }
}

// WithWriterLogger attaches a logger; the default discards everything.
func WithWriterLogger(l sflog.Logger) WriteOption {
	return func(w *Writer) { w.log = l }
}

// NewWriter constructs a Writer. nominalVecFrames is the frame count the
// caller intends to pass to Perform on every call in steady state.
func NewWriter(nominalVecFrames int, opts ...WriteOption) *Writer {
	w := &Writer{
		nominalVecFrames:      nominalVecFrames,
		bufferBytesPerChannel: defaultBufferBytesPerChannel,
		writeSize:             defaultWriteSize,
		normFactor:            1,
		log:                   sflog.Nop{},
		workerDone:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.requestCond = sync.NewCond(&w.mu)
	w.answerCond = sync.NewCond(&w.mu)

	go w.run()

	return w
}

// State returns the current lifecycle state.
func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the last error recorded by the worker, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// ItemsWritten returns the number of frames the worker has flushed so far.
func (w *Writer) ItemsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.itemsWritten
}

// Open requests a new output file. If a previous session is still
// Startup or Stream, Open first stops it and blocks until the worker has
// finalized and closed the old file, so two sessions never interleave on
// the same Writer.
func (w *Writer) Open(opts WriteOpenOptions) {
	w.mu.Lock()

	if w.state != StateIdle {
		w.state = StateIdle
		w.req = reqClose
		w.requestCond.Signal()
		for w.req != reqNone {
			w.answerCond.Wait()
		}
	}

	w.filename = opts.Filename
	w.format = opts.Format
	w.channels = opts.Channels
	w.bytesPerSample = opts.BytesPerSample
	w.bigEndian = opts.BigEndian
	w.sampleRate = opts.SampleRate
	w.itemsWritten = 0
	w.err = nil
	w.fifo.head, w.fifo.tail = 0, 0

	w.req = reqOpen
	w.state = StateStartup
	w.requestCond.Signal()

	w.mu.Unlock()
}

// Start transitions Startup to Stream.
func (w *Writer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStartup {
		return fmt.Errorf("%w: start with no prior open", ErrState)
	}
	w.state = StateStream
	return nil
}

// Stop transitions to Idle; the worker drains any queued audio, finalizes
// the header, and closes the file.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = StateIdle
	w.req = reqClose
	w.requestCond.Signal()
}

// Close terminates the worker goroutine, draining and finalizing any
// in-flight session first. It blocks until the worker acknowledges.
func (w *Writer) Close() {
	w.mu.Lock()
	w.req = reqQuit
	w.requestCond.Signal()
	for w.req != reqNone {
		w.answerCond.Wait()
	}
	w.mu.Unlock()

	<-w.workerDone

	w.mu.Lock()
	w.fifo.buf = nil
	w.mu.Unlock()
}

// Perform is the realtime callback: it encodes vecSize frames from in
// (one []float32 per channel) into the FIFO for the worker to flush.
// Outside StateStream, Perform is a no-op.
func (w *Writer) Perform(in [][]float32, vecSize int) {
	w.mu.Lock()

	if w.state != StateStream {
		w.mu.Unlock()
		return
	}

	bps := w.bytesPerSample
	channels := w.channels
	wantBytes := vecSize * bps * channels

	for w.fifo.free() < wantBytes {
		w.requestCond.Signal()
		w.answerCond.Wait()

		if w.state != StateStream {
			w.mu.Unlock()
			return
		}
	}

	w.ensureScratch(wantBytes)
	_ = sfcodec.XferOut(channels, in, 0, vecSize, w.scratch[:wantBytes], bps, w.bigEndian, 1, w.normFactor)
	w.fifo.produce(w.scratch[:wantBytes])

	w.sigCounter++
	if w.sigCounter >= w.sigPeriod {
		w.sigCounter = 0
		w.requestCond.Signal()
	}

	w.mu.Unlock()
}

func (w *Writer) ensureScratch(n int) {
	if cap(w.scratch) < n {
		w.scratch = make([]byte, n)
	} else {
		w.scratch = w.scratch[:n]
	}
}

// run is the worker goroutine's entire lifetime.
func (w *Writer) run() {
	defer close(w.workerDone)

	w.mu.Lock()
	for {
		for w.req == reqNone {
			w.requestCond.Wait()
		}

		switch w.req {
		case reqQuit:
			w.finalizeAndClose()
			w.req = reqNone
			w.answerCond.Broadcast()
			w.mu.Unlock()
			return

		case reqClose:
			w.finalizeAndClose()
			w.req = reqNone
			w.answerCond.Broadcast()

		case reqOpen:
			w.handleOpen()

		default:
			// reqBusy only ever appears from inside handleOpen's own loop.
		}
	}
}

// handleOpen must be called with w.mu held; it returns with w.mu held.
func (w *Writer) handleOpen() {
	w.finalizeAndClose()

	filename := w.filename
	format := w.format
	channels := w.channels
	bytesPerSample := w.bytesPerSample
	bigEndian := w.bigEndian
	sampleRate := w.sampleRate

	info := sfheader.Info{
		Format:         format,
		SampleRate:     sampleRate,
		Channels:       channels,
		BytesPerSample: bytesPerSample,
		BigEndian:      bigEndian,
	}

	w.mu.Unlock()
	f, headerSize, err := createAndEmit(filename, info)
	w.mu.Lock()

	if w.req != reqOpen {
		if f != nil {
			f.Close()
		}
		return
	}

	if err != nil {
		w.err = err
		w.req = reqNone
		w.state = StateIdle
		w.answerCond.Broadcast()
		w.log.Error("sfstream: write open failed", "file", filename, "error", err)
		return
	}

	w.file = f
	w.headerSize = headerSize
	w.itemsWritten = 0

	frameBytes := bytesPerSample * channels
	w.frameBytes = frameBytes
	if frameBytes <= 0 {
		w.err = fmt.Errorf("%w: zero-width frame", ErrArg)
		w.req = reqNone
		w.state = StateIdle
		w.finalizeAndClose()
		w.answerCond.Broadcast()
		return
	}

	capacity := clampCapacity(w.bufferBytesPerChannel*channels, minBufSizeReadMultiple*w.writeSize, maxBufSize)
	align := frameBytes * w.nominalVecFrames
	usable := capacity
	if align > 0 {
		usable -= capacity % align
	}
	if usable < minBufSizeReadMultiple*w.writeSize {
		usable = capacity
	}
	w.fifo.reset(capacity, usable)
	// A Perform that arrived before the FIFO was sized is waiting for room.
	w.answerCond.Broadcast()

	w.sigPeriod = usable / (16 * frameBytes * maxInt(w.nominalVecFrames, 1))
	if w.sigPeriod < 1 {
		w.sigPeriod = 1
	}
	w.sigCounter = 0

	w.req = reqBusy
	w.drainLoop()

	if w.req == reqBusy {
		w.req = reqNone
	}
	w.finalizeAndClose()
	w.answerCond.Broadcast()
}

// drainLoop flushes queued audio to disk while req==reqBusy, waiting for
// at least writeSize bytes to accumulate between writes. It must be
// called with w.mu held and returns with w.mu held.
func (w *Writer) drainLoop() {
	for w.req == reqBusy {
		if w.fifo.avail() < w.writeSize {
			w.requestCond.Wait()
			continue
		}
		if !w.drainOnce(w.writeSize) {
			return
		}
	}
}

// drainOnce writes one window of at most maxLen bytes starting at tail,
// rounded down to a whole number of frames. It must be called with w.mu
// held and returns with w.mu held; the return value is false once there
// is nothing left to write or the write failed.
func (w *Writer) drainOnce(maxLen int) bool {
	offset, length := w.fifo.consumerWindow(maxLen)
	if w.frameBytes > 0 {
		length -= length % w.frameBytes
	}
	if length <= 0 {
		return false
	}

	file := w.file
	buf := w.fifo.buf
	w.mu.Unlock()
	n, err := file.Write(buf[offset : offset+length])
	w.mu.Lock()

	if n > 0 {
		w.fifo.advanceTail(n)
		if w.frameBytes > 0 {
			w.itemsWritten += int64(n) / int64(w.frameBytes)
		}
		w.answerCond.Broadcast()
	}
	if err != nil {
		w.err = fmt.Errorf("sfstream: write: %w", err)
		return false
	}
	return true
}

// finalizeAndClose drains any remaining queued audio regardless of
// writeSize, patches the header's size fields, and closes the file. Must
// be called with w.mu held; returns with w.mu held.
func (w *Writer) finalizeAndClose() {
	if w.file == nil {
		return
	}

	for w.fifo.avail() > 0 && w.drainOnce(w.fifo.avail()) {
	}

	if err := finalizeHeader(w.file, w.format, w.itemsWritten, w.bytesPerSample*w.channels, w.bigEndian); err != nil {
		w.err = fmt.Errorf("sfstream: finalize: %w", err)
	}

	w.file.Close()
	w.file = nil
}

func createAndEmit(filename string, info sfheader.Info) (*os.File, int64, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("sfstream: create %s: %w", filename, err)
	}

	headerSize, err := sfheader.EmitHeader(f, info, 0)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("sfstream: emit header: %w", err)
	}

	return f, headerSize, nil
}

func finalizeHeader(f *os.File, format sfheader.Format, itemsWritten int64, bytesPerFrame int, bigEndian bool) error {
	switch format {
	case sfheader.WAVE:
		return sfheader.FinalizeWAVE(f, itemsWritten, bytesPerFrame)
	case sfheader.AIFF:
		return sfheader.FinalizeAIFF(f, itemsWritten, bytesPerFrame)
	case sfheader.NeXT:
		return sfheader.FinalizeNeXT(f, itemsWritten, bytesPerFrame, bigEndian)
	default:
		return nil
	}
}
