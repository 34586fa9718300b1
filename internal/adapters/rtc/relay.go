package rtc

import (
	"context"
	"maps"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

type OutputState int32

const (
	OutputOk OutputState = iota
	OutputMuted
	OutputDelete
)

// PacketWriter receives forwarded RTP packets.
type PacketWriter interface {
	WriteRTP(*rtp.Packet) error
}

// Output is a single destination of a relay.
type Output struct {
	w     PacketWriter
	state atomic.Int32 // Zero by default (OutputOk)
}

func (o *Output) State() OutputState { return OutputState(o.state.Load()) }
func (o *Output) MarkOk()            { o.state.Store(int32(OutputOk)) }
func (o *Output) MarkMuted()         { o.state.Store(int32(OutputMuted)) }
func (o *Output) MarkDelete()        { o.state.Store(int32(OutputDelete)) }

type RelayStats struct {
	Received uint64
	Lost     uint64
}

// LossRate is the share of packets missing from the sequence.
func (s RelayStats) LossRate() float64 {
	total := s.Received + s.Lost
	if total == 0 {
		return 0
	}
	return float64(s.Lost) / float64(total)
}

// Relay reads one remote track and fans its packets out to surfaces and
// audio sinks. It also counts sequence gaps and tracks the audio level.
type Relay struct {
	read func() (*rtp.Packet, error)

	mu      sync.RWMutex
	outputs map[string]*Output

	// levelExt is the negotiated audio level extension id, 0 when absent.
	levelExt uint8

	// loop goroutine only
	started bool
	lastSeq uint16

	received atomic.Uint64
	lost     atomic.Uint64
	level    atomic.Uint64 // float64 bits
	levelAt  atomic.Int64  // unix nanos

	done chan struct{}
}

func NewRelay(read func() (*rtp.Packet, error), levelExt uint8) *Relay {
	return &Relay{
		read:     read,
		outputs:  make(map[string]*Output),
		levelExt: levelExt,
		done:     make(chan struct{}),
	}
}

// Run forwards packets until the source fails or ctx ends.
func (r *Relay) Run(ctx context.Context, now func() time.Time, logger *zerolog.Logger) error {
	defer close(r.done)
	defer r.markAllDelete()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all outputs for delete")
			return ctx.Err()
		default:
		}
		pkt, err := r.read()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			return err
		}
		r.observe(pkt, now())
		r.forward(pkt, logger)
	}
}

// Done is closed once Run returns.
func (r *Relay) Done() <-chan struct{} { return r.done }

func (r *Relay) observe(pkt *rtp.Packet, at time.Time) {
	r.received.Add(1)
	if r.started {
		gap := pkt.SequenceNumber - r.lastSeq
		switch {
		case gap == 0 || gap >= 0x8000:
			// duplicate or reordered
			return
		case gap > 1:
			r.lost.Add(uint64(gap - 1))
		}
	}
	r.started = true
	r.lastSeq = pkt.SequenceNumber

	if r.levelExt == 0 {
		return
	}
	raw := pkt.GetExtension(r.levelExt)
	if raw == nil {
		return
	}
	var ext rtp.AudioLevelExtension
	if err := ext.Unmarshal(raw); err != nil {
		return
	}
	// Level is -dBov in 0..127, 0 being loudest
	lvl := 1 - float64(ext.Level)/127
	r.level.Store(math.Float64bits(lvl))
	r.levelAt.Store(at.UnixNano())
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outputs)
	r.mu.RUnlock()

	var dirty []string
	for id, out := range snapshot {
		switch out.State() {
		case OutputDelete:
			dirty = append(dirty, id)
		case OutputMuted:
		case OutputOk:
			if err := out.w.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("output", id).
					Msg("relay write RTP error, marking output as delete")
				out.MarkDelete()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		if out, ok := r.outputs[id]; ok && out.State() == OutputDelete {
			delete(r.outputs, id)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range r.outputs {
		out.MarkDelete()
	}
}

// Add registers w under id, replacing any previous output with that id.
func (r *Relay) Add(id string, w PacketWriter) *Output {
	out := &Output{w: w}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.outputs[id]; ok {
		old.MarkDelete()
	}
	r.outputs[id] = out
	return out
}

func (r *Relay) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if out, ok := r.outputs[id]; ok {
		out.MarkDelete()
		delete(r.outputs, id)
	}
}

func (r *Relay) Outputs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputs)
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{Received: r.received.Load(), Lost: r.lost.Load()}
}

// Level returns the last audio level seen within maxAge of now, else 0.
func (r *Relay) Level(now time.Time, maxAge time.Duration) float64 {
	at := r.levelAt.Load()
	if at == 0 || now.Sub(time.Unix(0, at)) > maxAge {
		return 0
	}
	return math.Float64frombits(r.level.Load())
}
