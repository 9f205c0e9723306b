// Package capture provides microphone capture and fixed-duration chunk
// framing for the realtime interview session.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// ErrAlreadyCapturing is returned when Start is called while a capture
// graph is already live.
var ErrAlreadyCapturing = errors.New("already capturing audio")

// Capture owns the microphone device and feeds a Framer with the raw
// sample stream. One Capture backs at most one live device at a time.
type Capture struct {
	mu sync.Mutex

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	capturing  bool
	sampleRate int
	onChunk    func(base64 string)

	// Accessed from the realtime audio thread without taking mu.
	framer atomic.Pointer[Framer]
	level  atomic.Uint32 // float32 bits

	// gen advances on every acquire and release so a stop notification
	// caused by our own teardown can be told apart from device loss.
	gen atomic.Uint64
}

// New creates an idle capture instance.
func New() *Capture {
	return &Capture{}
}

// Start acquires the default capture device at its native sample rate
// and begins emitting 100ms base64 PCM16 chunks through onChunk. It
// returns the negotiated sample rate. Device or permission failures are
// returned immediately and leave the instance idle.
func (c *Capture) Start(onChunk func(base64 string)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return 0, ErrAlreadyCapturing
	}

	c.onChunk = onChunk
	if err := c.acquireLocked(); err != nil {
		c.releaseLocked()
		return 0, err
	}

	c.capturing = true
	slog.Info("audio capture started", "sample_rate", c.sampleRate)
	return c.sampleRate, nil
}

// acquireLocked builds a fresh malgo context and capture device using
// the currently registered chunk callback. Caller holds c.mu.
func (c *Capture) acquireLocked() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	// SampleRate 0 keeps the device's native rate; the framer adapts.
	deviceConfig.SampleRate = 0
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, _ uint32) {
			c.handleFrames(pInput)
		},
		Stop: func() {
			c.handleDeviceStop()
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	c.device = device
	c.sampleRate = int(device.SampleRate())
	c.framer.Store(NewFramer(c.sampleRate, c.onChunk))

	if err := device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	c.gen.Add(1)
	return nil
}

// handleFrames runs on the realtime audio thread; it must only frame
// and hand off, never block or take locks.
func (c *Capture) handleFrames(data []byte) {
	framer := c.framer.Load()
	if framer == nil {
		return
	}
	framer.Push(decodeF32(data))
	c.level.Store(math.Float32bits(framer.Level()))
}

// handleDeviceStop fires on the device's stop notification. It must
// never take c.mu: device.Stop, called by releaseLocked while holding
// the mutex, blocks until this notification returns, so locking here
// would deadlock teardown. All work moves to a fresh goroutine, and the
// generation counter filters out notifications caused by our own
// release (unplug and reroute re-acquire; teardown does not).
func (c *Capture) handleDeviceStop() {
	gen := c.gen.Load()
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.capturing || c.gen.Load() != gen {
			return
		}
		slog.Warn("capture device stopped, re-acquiring")
		c.releaseLocked()
		if err := c.acquireLocked(); err != nil {
			slog.Error("re-acquire capture device", "error", err)
			c.releaseLocked()
			c.capturing = false
		}
	}()
}

// Stop releases the device and context and zeroes the level. Safe to
// call repeatedly and while already stopped.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}
	c.capturing = false
	c.releaseLocked()
	slog.Info("audio capture stopped")
	return nil
}

// releaseLocked tears down the device and context. Caller holds c.mu.
func (c *Capture) releaseLocked() {
	c.gen.Add(1)
	c.framer.Store(nil)
	c.level.Store(0)
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

// Level returns the RMS of the most recent processing callback, or 0
// when not capturing.
func (c *Capture) Level() float32 {
	return math.Float32frombits(c.level.Load())
}

// SampleRate returns the negotiated device sample rate.
func (c *Capture) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleRate
}

// IsCapturing reports whether a capture graph is live.
func (c *Capture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// decodeF32 reinterprets little-endian float32 device bytes as samples.
func decodeF32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
