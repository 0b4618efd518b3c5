package protocol

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mowerble/internal/logging"
)

// Reassembler glues inbound notification chunks back into frames.
//
// Any chunk that looks like a frame start is kept as a candidate, even in
// the middle of a frame: payload bytes may happen to read as a header.
// The first candidate that completes and validates wins, in buffer order.
//
// It is not safe for concurrent use; the connection that owns it serialises
// calls to Ingest.
type Reassembler struct {
	layout Layout
	log    *zap.Logger

	buffer []byte
	starts []int // buffer offsets of chunks that look like frame starts

	dropped int
}

// NewReassembler creates a reassembler for the given layout.
// A nil logger disables logging.
func NewReassembler(layout Layout, log *zap.Logger) *Reassembler {
	if layout == nil {
		layout = DefaultLayout{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reassembler{
		layout: layout,
		log:    log,
		buffer: make([]byte, 0, layout.Overhead()+64),
	}
}

// Reset discards any partially received frame
func (r *Reassembler) Reset() {
	r.buffer = r.buffer[:0]
	r.starts = r.starts[:0]
}

// Dropped returns how many partial or corrupt frames have been discarded
func (r *Reassembler) Dropped() int {
	return r.dropped
}

// Pending reports whether a frame is partially buffered
func (r *Reassembler) Pending() bool {
	return len(r.buffer) > 0
}

// Ingest feeds one chunk into the reassembly buffer.
// It returns the completed frame, or nil while more chunks are expected or
// when the buffered bytes had to be discarded.
func (r *Reassembler) Ingest(chunk []byte) *Frame {
	if len(chunk) == 0 {
		return nil
	}

	start := r.layout.IsFrameStart(chunk)
	if !start && !r.Pending() {
		r.dropped++
		r.log.Debug("Discarding chunk outside of a frame", logging.RawBytes(chunk)...)
		return nil
	}

	if start {
		r.starts = append(r.starts, len(r.buffer))
	}
	r.buffer = append(r.buffer, chunk...)

	return r.complete()
}

// complete returns the first candidate that forms a valid frame. Candidates
// with a bad header or a frame that fails validation are dropped; the
// buffer is discarded once none are left.
func (r *Reassembler) complete() *Frame {
	var lastErr error
	live := r.starts[:0]
	for _, off := range r.starts {
		data := r.buffer[off:]
		if len(data) < r.layout.HeaderSize() {
			live = append(live, off)
			continue
		}
		total, err := r.layout.FrameLength(data)
		if err != nil {
			lastErr = err
			continue
		}
		if len(data) < total {
			live = append(live, off)
			continue
		}

		frame, err := r.layout.Unmarshal(data[:total])
		if err != nil {
			lastErr = err
			continue
		}

		if len(data) > total {
			r.log.Debug("Ignoring trailing bytes after frame",
				zap.Int("expected", total),
				zap.Int("received", len(data)),
			)
		}
		if off > 0 {
			r.dropped++
			r.log.Warn("Discarding partial frame superseded by a new one",
				zap.Int("buffered", off),
			)
		}
		frame.Received = time.Now()
		r.Reset()
		return frame
	}
	r.starts = live

	if len(r.starts) == 0 {
		r.discard("no valid frame in buffered bytes", lastErr)
		return nil
	}
	if r.starts[0] > 0 {
		// Bytes before the first remaining candidate can no longer complete
		r.dropped++
		r.log.Warn("Discarding partial frame", zap.Int("buffered", r.starts[0]), zap.Error(lastErr))
		shift := r.starts[0]
		r.buffer = append(r.buffer[:0], r.buffer[shift:]...)
		for i := range r.starts {
			r.starts[i] -= shift
		}
	}
	return nil
}

func (r *Reassembler) discard(reason string, err error) {
	r.dropped++
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.Int("buffered", len(r.buffer)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.log.Warn("Discarding partial frame", fields...)
	r.Reset()
}
