// Package sfstream implements the background-threaded streaming engine: a
// realtime-safe Perform callback bridged to a worker goroutine doing
// blocking file I/O, through a shared FIFO and a request/state machine.
package sfstream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"sfio/internal/sfcodec"
	"sfio/internal/sfheader"
	"sfio/sflog"
)

// RawOverride bypasses header parsing: the caller asserts the layout
// instead of the parser discovering it.
type RawOverride struct {
	HeaderSize     int64
	Channels       int
	BytesPerSample int
	BigEndian      bool
}

// OpenOptions configures a Reader.Open call. A nil Raw means parse the
// header normally.
type OpenOptions struct {
	Filename string
	Raw      *RawOverride
}

// Option configures a Reader at construction time.
type Option func(*Reader)

// WithBufferBytesPerChannel overrides the per-channel FIFO capacity before
// clamping to [4*ReadSize, 16<<20].
func WithBufferBytesPerChannel(n int) Option {
	return func(r *Reader) { r.bufferBytesPerChannel = n }
}

// WithReadSize overrides the worker's per-syscall read size.
func WithReadSize(n int) Option {
	return func(r *Reader) { r.readSize = n }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l sflog.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// Reader is a background-threaded streaming soundfile reader. The zero
// value is not usable; construct with NewReader. A Reader must not be
// used from more than one parent goroutine at a time, though the parent
// and the internal worker goroutine cooperate safely by design.
type Reader struct {
	mu          sync.Mutex
	requestCond *sync.Cond
	answerCond  *sync.Cond

	nominalVecFrames      int
	bufferBytesPerChannel int
	readSize              int

	fifo fifo

	state State
	req   request

	filename string
	raw      *RawOverride

	info      sfheader.Info
	eof       bool
	byteLimit int64

	sigPeriod  int
	sigCounter int

	file    *os.File
	scratch []byte

	framesDecoded int64

	doneCh     chan struct{}
	workerDone chan struct{}

	err error
	log sflog.Logger
}

// NewReader constructs a Reader. nominalVecFrames is the frame count the
// caller intends to pass to Perform on every call in steady state; it
// sizes the FIFO's alignment and the worker's wake cadence and must be
// positive.
func NewReader(nominalVecFrames int, opts ...Option) *Reader {
	r := &Reader{
		nominalVecFrames:      nominalVecFrames,
		bufferBytesPerChannel: defaultBufferBytesPerChannel,
		readSize:              defaultReadSize,
		doneCh:                make(chan struct{}, 1),
		workerDone:            make(chan struct{}),
		log:                   sflog.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.requestCond = sync.NewCond(&r.mu)
	r.answerCond = sync.NewCond(&r.mu)
	r.fifo.buf = nil

	go r.run()

	return r
}

// Done returns a channel that receives one value each time a stream
// reaches end-of-file and the Reader falls back to StateIdle.
func (r *Reader) Done() <-chan struct{} {
	return r.doneCh
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the last error recorded by the worker, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Snapshot is a point-in-time view of a Reader's telemetry, used by
// sftui and sfweb.
type Snapshot struct {
	State         State
	Filename      string
	Format        sfheader.Format
	FifoFillPct   float64
	FramesDecoded int64
	Err           error
}

// Snapshot returns telemetry for display; cheap enough to poll.
func (r *Reader) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fill float64
	if r.fifo.size > 0 {
		fill = float64(r.fifo.avail()) / float64(r.fifo.size) * 100
	}

	return Snapshot{
		State:         r.state,
		Filename:      r.filename,
		Format:        r.info.Format,
		FifoFillPct:   fill,
		FramesDecoded: r.framesDecoded,
		Err:           r.err,
	}
}

// Open requests that the worker open filename and begin buffering. It
// does not block; the caller should not issue a second Open before
// observing the first complete (via Done, Err, or State transitioning
// out of Startup), since a superseding Open simply preempts the worker's
// current request.
func (r *Reader) Open(opts OpenOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filename = opts.Filename
	r.raw = opts.Raw

	r.req = reqOpen
	r.state = StateStartup
	r.eof = false
	r.err = nil
	r.framesDecoded = 0
	r.fifo.head, r.fifo.tail = 0, 0

	r.requestCond.Signal()
}

// Start transitions Startup to Stream; Perform produces silence until
// this is called.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateStartup {
		return fmt.Errorf("%w: start with no prior open", ErrState)
	}
	r.state = StateStream
	return nil
}

// Stop transitions to Idle and asks the worker to close the file.
func (r *Reader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateIdle
	r.req = reqClose
	r.requestCond.Signal()
}

// Close terminates the worker goroutine and releases the FIFO. It blocks
// until the worker acknowledges. A closed Reader must not be reused.
func (r *Reader) Close() {
	r.mu.Lock()
	r.req = reqQuit
	r.requestCond.Signal()
	for r.req != reqNone {
		r.answerCond.Wait()
	}
	r.mu.Unlock()

	<-r.workerDone

	r.mu.Lock()
	r.fifo.buf = nil
	r.mu.Unlock()
}

// Perform is the realtime callback: it decodes vecSize frames into out
// (one []float32 per channel, each at least vecSize long) from the FIFO.
// Outside StateStream it writes silence. On end-of-file it decodes
// whatever remains, zeroes the rest, drops to StateIdle, and queues a
// non-blocking notification on the Done channel.
func (r *Reader) Perform(out [][]float32, vecSize int) {
	r.mu.Lock()

	if r.state != StateStream {
		r.mu.Unlock()
		zeroFrames(out, 0, vecSize)
		return
	}

	// Until the worker has parsed the header and sized the FIFO, the layout
	// is unknown, so keep waiting; re-read it after every wakeup.
	for !r.eof && (r.fifo.size == 0 || r.fifo.avail() < vecSize*r.info.BytesPerSample*r.info.Channels) {
		r.requestCond.Signal()
		r.answerCond.Wait()

		if r.state != StateStream {
			r.mu.Unlock()
			zeroFrames(out, 0, vecSize)
			return
		}
	}

	bps := r.info.BytesPerSample
	channels := r.info.Channels
	wantBytes := vecSize * bps * channels

	if r.fifo.avail() < wantBytes {
		r.performPartialAndGoIdle(out, vecSize, bps, channels)
		return
	}

	r.ensureScratch(wantBytes)
	r.fifo.consume(r.scratch[:wantBytes], wantBytes)
	_ = sfcodec.XferIn(channels, out, 0, vecSize, r.scratch[:wantBytes], bps, r.info.BigEndian, 1)
	r.framesDecoded += int64(vecSize)

	r.sigCounter++
	if r.sigCounter >= r.sigPeriod {
		r.sigCounter = 0
		r.requestCond.Signal()
	}

	r.mu.Unlock()
}

// performPartialAndGoIdle must be called with r.mu held; it unlocks
// before returning.
func (r *Reader) performPartialAndGoIdle(out [][]float32, vecSize, bps, channels int) {
	avail := r.fifo.avail()
	frameBytes := bps * channels
	partialFrames := avail / frameBytes

	if partialFrames > 0 {
		n := partialFrames * frameBytes
		r.ensureScratch(n)
		r.fifo.consume(r.scratch[:n], n)
		_ = sfcodec.XferIn(channels, out, 0, partialFrames, r.scratch[:n], bps, r.info.BigEndian, 1)
		r.framesDecoded += int64(partialFrames)
	}
	zeroFrames(out, partialFrames, vecSize)

	r.state = StateIdle
	r.mu.Unlock()

	select {
	case r.doneCh <- struct{}{}:
	default:
	}
}

func (r *Reader) ensureScratch(n int) {
	if cap(r.scratch) < n {
		r.scratch = make([]byte, n)
	} else {
		r.scratch = r.scratch[:n]
	}
}

func zeroFrames(out [][]float32, from, vecSize int) {
	for _, v := range out {
		for i := from; i < vecSize && i < len(v); i++ {
			v[i] = 0
		}
	}
}

// run is the worker goroutine's entire lifetime.
func (r *Reader) run() {
	defer close(r.workerDone)

	r.mu.Lock()
	for {
		for r.req == reqNone {
			r.requestCond.Wait()
		}

		switch r.req {
		case reqQuit:
			r.closeFile()
			r.req = reqNone
			r.answerCond.Broadcast()
			r.mu.Unlock()
			return

		case reqClose:
			r.closeFile()
			r.req = reqNone
			r.answerCond.Broadcast()

		case reqOpen:
			r.handleOpen()

		default:
			// reqBusy is only ever observed from inside handleOpen's own
			// loop; seeing it here would be a logic error, so treat it as
			// a spurious wakeup and go back to waiting.
		}
	}
}

// handleOpen must be called with r.mu held; it returns with r.mu held.
func (r *Reader) handleOpen() {
	r.closeFile()

	filename := r.filename
	raw := r.raw

	r.mu.Unlock()
	f, info, err := openAndParse(filename, raw)
	r.mu.Lock()

	if r.req != reqOpen {
		// Superseded while we were opening; let the caller's pending
		// request take over on the next loop iteration.
		if f != nil {
			f.Close()
		}
		return
	}

	if err != nil {
		r.err = err
		r.req = reqNone
		r.state = StateIdle
		r.answerCond.Broadcast()
		r.log.Error("sfstream: open failed", "file", filename, "error", err)
		return
	}

	r.file = f
	r.info = info
	r.byteLimit = info.ByteLimit
	r.eof = false

	frameBytes := info.BytesPerSample * info.Channels
	if frameBytes <= 0 {
		r.err = fmt.Errorf("%w: zero-width frame", ErrArg)
		r.req = reqNone
		r.state = StateIdle
		r.closeFile()
		r.answerCond.Broadcast()
		return
	}

	capacity := clampCapacity(r.bufferBytesPerChannel*info.Channels, minBufSizeReadMultiple*r.readSize, maxBufSize)
	align := frameBytes * r.nominalVecFrames
	usable := capacity
	if align > 0 {
		usable -= capacity % align
	}
	if usable < minBufSizeReadMultiple*r.readSize {
		usable = capacity
	}
	r.fifo.reset(capacity, usable)

	r.sigPeriod = usable / (16 * frameBytes * maxInt(r.nominalVecFrames, 1))
	if r.sigPeriod < 1 {
		r.sigPeriod = 1
	}
	r.sigCounter = 0

	r.req = reqBusy
	r.refillLoop()

	if r.req == reqBusy {
		r.req = reqNone
	}
	r.closeFile()
	r.answerCond.Broadcast()
}

// refillLoop must be called with r.mu held; it returns with r.mu held.
func (r *Reader) refillLoop() {
	for r.req == reqBusy {
		offset, length := r.nextReadWindow()
		if length <= 0 {
			if r.byteLimit <= 0 {
				r.eof = true
				return
			}
			r.requestCond.Wait()
			continue
		}

		if int64(length) > r.byteLimit {
			length = int(r.byteLimit)
		}

		file := r.file
		buf := r.fifo.buf
		r.mu.Unlock()
		n, readErr := file.Read(buf[offset : offset+length])
		r.mu.Lock()

		if r.req != reqBusy {
			return
		}

		if n > 0 {
			r.fifo.advanceHead(n)
			r.byteLimit -= int64(n)
			r.answerCond.Broadcast()
		}

		if readErr != nil && !errors.Is(readErr, io.EOF) {
			r.err = fmt.Errorf("sfstream: read: %w", readErr)
		}
		if readErr != nil || n == 0 || r.byteLimit <= 0 {
			r.eof = true
			return
		}
	}
}

// nextReadWindow picks the single contiguous region the worker may read
// into next, per the head/tail disambiguation rule: head==tail always
// means empty, so the producer never writes the byte that would make
// them equal again.
func (r *Reader) nextReadWindow() (offset, length int) {
	f := &r.fifo

	if f.head >= f.tail {
		limit := f.size
		if f.tail == 0 {
			limit--
		}
		length = limit - f.head
		if length > r.readSize {
			length = r.readSize
		}
		if length <= 0 {
			return 0, 0
		}
		return f.head, length
	}

	slack := f.tail - f.head - 1
	if slack < r.readSize {
		return 0, 0
	}
	return f.head, r.readSize
}

func (r *Reader) closeFile() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

func openAndParse(filename string, raw *RawOverride) (*os.File, sfheader.Info, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, sfheader.Info{}, fmt.Errorf("sfstream: open %s: %w", filename, err)
	}

	if raw != nil {
		if raw.Channels < 1 {
			f.Close()
			return nil, sfheader.Info{}, fmt.Errorf("%w: raw open needs channels", ErrArg)
		}
		info := sfheader.Info{
			HeaderSize:     raw.HeaderSize,
			Channels:       raw.Channels,
			BytesPerSample: raw.BytesPerSample,
			BigEndian:      raw.BigEndian,
			ByteLimit:      sfheader.ByteLimitUnlimited,
		}
		if _, err := f.Seek(raw.HeaderSize, io.SeekStart); err != nil {
			f.Close()
			return nil, sfheader.Info{}, fmt.Errorf("sfstream: seek raw header: %w", err)
		}
		return f, info, nil
	}

	info, err := sfheader.ParseHeader(f)
	if err != nil {
		f.Close()
		return nil, sfheader.Info{}, err
	}

	return f, info, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
