// Package playback provides gapless queued playback of base64 PCM16
// audio chunks with immediate barge-in interruption.
package playback

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SinkPlayer is one playback cursor pulling samples from a reader.
// Satisfied by *oto.Player.
type SinkPlayer interface {
	Play()
	Pause()
	Close() error
}

// Sink creates playback cursors. Satisfied by an oto context in
// production and by fakes in tests.
type Sink interface {
	NewPlayer(io.Reader) SinkPlayer
}

// Player maintains a strict-FIFO queue of decoded sample buffers and
// plays them back to back through a single cursor. All methods return
// immediately; the sink pulls audio on its own thread.
type Player struct {
	mu     sync.Mutex
	sink   Sink
	player SinkPlayer
	queue  [][]byte
	cur    []byte
	closed bool
}

// New creates a player on the given sink.
func New(sink Sink) *Player {
	return &Player{sink: sink}
}

// NewOto creates a player backed by a real audio output device at the
// given sample rate (mono, 16-bit signed little-endian).
func NewOto(sampleRate int) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without starving the device.
		BufferSize: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init audio output: %w", err)
	}
	<-ready
	return New(otoSink{ctx}), nil
}

type otoSink struct {
	ctx *oto.Context
}

func (s otoSink) NewPlayer(r io.Reader) SinkPlayer {
	return s.ctx.NewPlayer(r)
}

// Play decodes a base64 PCM16 chunk and appends it to the queue in
// arrival order, starting the cursor if idle. A malformed payload is
// returned as an error and never disturbs the queue.
func (p *Player) Play(b64 string) error {
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.queue = append(p.queue, pcm)
	if p.player == nil {
		p.player = p.sink.NewPlayer(readerFunc(p.fill))
		p.player.Play()
	}
	return nil
}

// Stop halts the currently sounding buffer immediately and discards all
// queued-but-unplayed buffers. Safe to call when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	p.queue = nil
	p.cur = nil
	player := p.player
	p.player = nil
	p.mu.Unlock()

	if player != nil {
		player.Pause()
		_ = player.Close()
	}
}

// Playing reports whether any audio is queued or sounding.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cur) > 0 || len(p.queue) > 0
}

// QueueLen returns the number of buffers awaiting playback.
func (p *Player) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops playback and rejects further chunks.
func (p *Player) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Stop()
	return nil
}

// fill feeds the sink cursor: current buffer first, then the next one
// off the queue, then silence once drained. Returning silence rather
// than blocking keeps the device fed and lets Stop take effect between
// pulls.
func (p *Player) fill(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(buf) {
		if len(p.cur) == 0 {
			if len(p.queue) == 0 {
				break
			}
			p.cur = p.queue[0]
			p.queue = p.queue[1:]
		}
		c := copy(buf[n:], p.cur)
		p.cur = p.cur[c:]
		n += c
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return len(buf), nil
}

// readerFunc adapts a fill function to io.Reader for the sink.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}
