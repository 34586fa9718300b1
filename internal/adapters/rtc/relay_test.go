package rtc

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type feed chan *rtp.Packet

func (f feed) read() (*rtp.Packet, error) {
	pkt, ok := <-f
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

type collector struct {
	mu   sync.Mutex
	seqs []uint16
	err  error
}

func (c *collector) WriteRTP(p *rtp.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.seqs = append(c.seqs, p.SequenceNumber)
	return nil
}

func (c *collector) got() []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint16(nil), c.seqs...)
}

func packet(seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{Version: 2, SequenceNumber: seq}}
}

func runRelay(t *testing.T, r *Relay, clock clockwork.Clock) {
	t.Helper()
	logger := zerolog.Nop()
	go func() { _ = r.Run(context.Background(), clock.Now, &logger) }()
}

func TestRelay_Forwards_To_All_Outputs(t *testing.T) {
	req := require.New(t)
	src := make(feed)
	r := NewRelay(src.read, 0)
	a, b := &collector{}, &collector{}
	r.Add("a", a)
	r.Add("b", b)
	runRelay(t, r, clockwork.NewFakeClock())

	// When two packets arrive
	src <- packet(1)
	src <- packet(2)
	close(src)
	<-r.Done()

	// Then both outputs saw them in order
	req.Equal([]uint16{1, 2}, a.got())
	req.Equal([]uint16{1, 2}, b.got())
	req.Equal(RelayStats{Received: 2}, r.Stats())
}

func TestRelay_Muted_And_Failed_Outputs(t *testing.T) {
	req := require.New(t)
	src := make(feed)
	r := NewRelay(src.read, 0)
	muted, broken, ok := &collector{}, &collector{err: errors.New("closed pipe")}, &collector{}
	r.Add("muted", muted).MarkMuted()
	r.Add("broken", broken)
	r.Add("ok", ok)
	runRelay(t, r, clockwork.NewFakeClock())

	src <- packet(1)
	src <- packet(2)
	close(src)
	<-r.Done()

	req.Empty(muted.got())
	req.Equal([]uint16{1, 2}, ok.got())
	// the failing writer is dropped after its first error; the rest are
	// marked for delete once the source ends
	req.Equal(2, r.Outputs())
}

func TestRelay_Remove_Stops_Forwarding(t *testing.T) {
	req := require.New(t)
	src := make(feed)
	r := NewRelay(src.read, 0)
	c := &collector{}
	r.Add("surface", c)
	runRelay(t, r, clockwork.NewFakeClock())

	src <- packet(1)
	req.Eventually(func() bool { return len(c.got()) == 1 }, time.Second, time.Millisecond)
	r.Remove("surface")
	src <- packet(2)
	close(src)
	<-r.Done()

	req.Equal([]uint16{1}, c.got())
	req.Zero(r.Outputs())
}

func TestRelay_Counts_Sequence_Gaps(t *testing.T) {
	req := require.New(t)
	src := make(feed)
	r := NewRelay(src.read, 0)
	runRelay(t, r, clockwork.NewFakeClock())

	// Given a stream that wraps around, skips packets, repeats one and
	// delivers one late
	for _, seq := range []uint16{65533, 65534, 1, 2, 2, 6, 5} {
		src <- packet(seq)
	}
	close(src)
	<-r.Done()

	st := r.Stats()
	req.Equal(uint64(7), st.Received)
	// 65535, 0, 3, 4 and 5 count as lost; the late 5 is not credited back
	req.Equal(uint64(5), st.Lost)
	req.InDelta(5.0/12.0, st.LossRate(), 1e-9)
}

func TestRelay_Audio_Level_Expires(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClock()
	src := make(feed)
	r := NewRelay(src.read, 1)
	runRelay(t, r, clock)

	// Given a loud packet carrying the audio level extension
	raw, err := rtp.AudioLevelExtension{Level: 0, Voice: true}.Marshal()
	req.NoError(err)
	pkt := packet(10)
	req.NoError(pkt.SetExtension(1, raw))
	src <- pkt
	close(src)
	<-r.Done()

	// Then the level is full while fresh and zero once stale
	req.InDelta(1.0, r.Level(clock.Now(), time.Second), 1e-9)
	clock.Advance(2 * time.Second)
	req.Zero(r.Level(clock.Now(), time.Second))
}

func TestRelayStats_LossRate_Empty(t *testing.T) {
	require.Zero(t, RelayStats{}.LossRate())
}
