// Package interview implements the session-orchestration core of the
// mock-interview engine: the transcript ledger, the system prompt, and
// the controller driving the realtime voice protocol.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/types"
	"github.com/voxprep/voxprep/interview/realtime"
)

// ErrSessionActive is returned by Start while a previous session is
// still live. Rapid double-starts would otherwise leak device and
// socket handles.
var ErrSessionActive = errors.New("interview session already active")

// State is the lifecycle state of the session controller.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingConfig
	StateAwaitingGreeting
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingConfig:
		return "awaiting_config"
	case StateAwaitingGreeting:
		return "awaiting_greeting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the bidirectional realtime connection. Satisfied by
// *realtime.Client.
type Transport interface {
	Send(ctx context.Context, event interface{}) error
	Events() <-chan realtime.ServerEvent
	Errors() <-chan error
	Close() error
}

// Capturer produces base64 PCM16 chunks from the microphone. Satisfied
// by *capture.Capture.
type Capturer interface {
	Start(onChunk func(base64 string)) (int, error)
	Stop() error
	Level() float32
	IsCapturing() bool
}

// Speaker plays base64 PCM16 chunks in arrival order and supports
// immediate interruption. Satisfied by *playback.Player.
type Speaker interface {
	Play(base64 string) error
	Stop()
}

// Config holds the immutable setup for one controller.
type Config struct {
	Input types.InterviewInput
	Voice string

	// GetCode reads the live code buffer; called synchronously on every
	// turn advance and ledger write.
	GetCode func() string
	// GetTestCases reads the current visible test-case definitions.
	GetTestCases func() []types.TestCase
	// RunTests executes the visible tests against the given code. Nil
	// disables the run_tests tool.
	RunTests func(code string) []types.TestResult

	// Dial opens the realtime connection.
	Dial func(ctx context.Context) (Transport, error)

	Metrics *metrics.Metrics

	// OnComplete receives the finished session record after teardown.
	OnComplete func(types.InterviewOutput)
}

// Controller owns one interview session: the realtime connection, the
// configuration handshake, the turn-taking protocol, and lifecycle.
// All cross-callback state lives here, created per session.
type Controller struct {
	cfg    Config
	ledger *Ledger

	capture Capturer
	player  Speaker

	mu           sync.Mutex
	state        State
	transport    Transport
	configSent   bool
	configured   bool
	assistantBuf string
	sampleRate   int
	systemPrompt string
	lastErr      string
	id           string
	startedAt    time.Time
	cancel       context.CancelFunc

	// sendCh carries captured chunks off the audio thread to a single
	// sender goroutine, preserving frame order without blocking the
	// processing callback.
	sendCh chan string
}

// New creates an idle controller.
func New(cfg Config, capture Capturer, player Speaker) *Controller {
	return &Controller{
		cfg:     cfg,
		capture: capture,
		player:  player,
		ledger:  NewLedger(cfg.GetCode, cfg.GetTestCases),
	}
}

// Ledger returns the session transcript ledger.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// Start opens the realtime connection and the capture graph and begins
// the session. Exactly one connection, one capture graph, and one
// playback queue are live per session; Start fails with
// ErrSessionActive unless the controller is idle or closed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateClosed {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.state = StateConnecting
	c.configSent = false
	c.configured = false
	c.assistantBuf = ""
	c.lastErr = ""
	c.id = uuid.NewString()
	c.startedAt = time.Now()
	c.systemPrompt = BuildSystemPrompt(c.cfg.Input)
	c.sendCh = make(chan string, 64)
	c.mu.Unlock()

	c.ledger.Clear()

	transport, err := c.cfg.Dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.lastErr = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}

	sampleRate, err := c.capture.Start(c.handleChunk)
	if err != nil {
		_ = transport.Close()
		c.mu.Lock()
		c.state = StateClosed
		c.lastErr = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.transport = transport
	c.sampleRate = sampleRate
	c.state = StateAwaitingConfig
	c.cancel = cancel
	c.mu.Unlock()

	c.cfg.Metrics.RecordSessionStart()
	slog.Info("interview session started", "id", c.id, "sample_rate", sampleRate)

	go c.sendLoop(runCtx, transport)
	go c.run(runCtx, transport)
	return nil
}

// Stop ends the session gracefully: release the microphone, halt
// playback, close the socket. No attempt is made to flush in-flight
// messages. Idempotent.
func (c *Controller) Stop() error {
	c.teardown("")
	return nil
}

// Status returns the continuously-updated observable session state.
func (c *Controller) Status() types.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	connected := c.state == StateAwaitingConfig ||
		c.state == StateAwaitingGreeting ||
		c.state == StateActive
	return types.SessionStatus{
		Connected:  connected,
		Capturing:  c.capture.IsCapturing(),
		AudioLevel: c.capture.Level(),
		State:      c.state.String(),
		Error:      c.lastErr,
	}
}

// Transcript returns a copy of the session transcript.
func (c *Controller) Transcript() []types.TranscriptEntry {
	return c.ledger.Entries()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// handleChunk runs on the audio processing callback. It must not
// block: the chunk is handed to the sender goroutine, or dropped if
// the channel is full.
func (c *Controller) handleChunk(b64 string) {
	c.cfg.Metrics.RecordChunk()

	c.mu.Lock()
	configured := c.configured
	ch := c.sendCh
	c.mu.Unlock()

	// Audio is relayed only once the session is configured; earlier
	// frames are deliberately discarded, but the loss stays observable.
	if !configured || ch == nil {
		c.cfg.Metrics.RecordDroppedSend()
		return
	}

	select {
	case ch <- b64:
	default:
		c.cfg.Metrics.RecordDroppedSend()
	}
}

// sendLoop forwards captured chunks to the transport in FIFO order.
func (c *Controller) sendLoop(ctx context.Context, transport Transport) {
	c.mu.Lock()
	ch := c.sendCh
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case b64 := <-ch:
			if err := transport.Send(ctx, realtime.EventInputAudioBufferAppend(b64)); err != nil {
				slog.Debug("send audio chunk", "error", err)
			}
		}
	}
}

// run is the receive loop. Every inbound event is dispatched through
// handleEvent synchronously, so the turn-advance sequence can never
// interleave with a later event.
func (c *Controller) run(ctx context.Context, transport Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-transport.Errors():
			if !ok {
				continue
			}
			c.handleTransportError(err)
			return
		case ev, ok := <-transport.Events():
			if !ok {
				// The receive stream closes right after any close error
				// is queued, so both cases can be ready at once. Drain
				// the error here or the session would stay live with the
				// microphone held forever.
				select {
				case err := <-transport.Errors():
					c.handleTransportError(err)
				default:
					c.teardown("")
				}
				return
			}
			c.handleEvent(ctx, ev)
		}
	}
}

// handleEvent dispatches one inbound protocol event. It runs to
// completion before the next event is read.
func (c *Controller) handleEvent(ctx context.Context, ev realtime.ServerEvent) {
	c.cfg.Metrics.RecordEvent(ev.Type)

	switch ev.Type {
	case realtime.EventConversationCreated:
		c.sendSessionConfig(ctx)

	case realtime.EventSessionUpdated:
		c.mu.Lock()
		already := c.configured
		c.configured = true
		if !already {
			c.state = StateAwaitingGreeting
		}
		c.mu.Unlock()
		if !already {
			c.beginGreeting(ctx)
		}

	case realtime.EventOutputAudioDelta:
		if err := c.player.Play(ev.Delta); err != nil {
			c.cfg.Metrics.RecordDecodeError()
			slog.Error("play audio chunk", "error", err)
		}

	case realtime.EventOutputTranscriptDelta:
		c.mu.Lock()
		c.assistantBuf += ev.Delta
		buf := c.assistantBuf
		c.mu.Unlock()
		c.ledger.UpdateAssistantMessage(buf)

	case realtime.EventResponseDone:
		// The next response starts a fresh accumulation.
		c.mu.Lock()
		c.assistantBuf = ""
		c.mu.Unlock()

	case realtime.EventSpeechStarted:
		// Barge-in: the candidate began talking over the AI.
		c.player.Stop()
		c.cfg.Metrics.RecordBargeIn()

	case realtime.EventItemAdded:
		c.handleItemAdded(ctx, ev.Item)

	case realtime.EventError:
		if ev.Error != nil {
			c.setError(ev.Error.Message)
			slog.Error("realtime api error",
				"code", ev.Error.Code, "message", ev.Error.Message)
		}
	}
}

// sendSessionConfig sends the one-shot configuration message. Guarded
// so a duplicated conversation.created ack cannot re-send it.
func (c *Controller) sendSessionConfig(ctx context.Context) {
	c.mu.Lock()
	if c.configSent {
		c.mu.Unlock()
		return
	}
	c.configSent = true
	cfg := realtime.SessionConfig{
		Instructions: c.systemPrompt,
		Voice:        c.cfg.Voice,
		SampleRate:   c.sampleRate,
	}
	transport := c.transport
	c.mu.Unlock()

	if err := transport.Send(ctx, realtime.EventSessionUpdate(cfg)); err != nil {
		c.setError(fmt.Sprintf("send session config: %v", err))
	}
}

// beginGreeting commits any buffered input audio and seeds the
// conversation with a system-authored user turn so the AI speaks
// first.
func (c *Controller) beginGreeting(ctx context.Context) {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	c.send(ctx, transport, realtime.EventInputAudioBufferCommit())
	c.send(ctx, transport, realtime.EventConversationItemCreate(greetingPrompt))
	c.send(ctx, transport, realtime.EventResponseCreate())

	c.mu.Lock()
	c.state = StateActive
	c.mu.Unlock()
}

// handleItemAdded is the turn-advance trigger. On the first qualifying
// audio-transcript content block of a user item it records the
// transcript, injects the current code, and requests a response, in
// that exact order, then stops scanning content blocks.
func (c *Controller) handleItemAdded(ctx context.Context, item *realtime.ConversationItem) {
	if item == nil {
		return
	}

	if item.Type == "function_call" {
		c.handleFunctionCall(ctx, item)
		return
	}

	if item.Role != "user" {
		return
	}

	for _, part := range item.Content {
		// Textual items are the controller's own injections; only the
		// audio-transcript kind advances the turn.
		if part.Type != realtime.ContentInputAudio {
			continue
		}
		// Defense against an echo of an injected code message being
		// misclassified as speech.
		if ContainsCodeMarker(part.Transcript) {
			continue
		}

		c.ledger.AddOrUpdateUserMessage(item.ID, part.Transcript)
		c.injectCode(ctx)
		c.requestResponse(ctx)
		break
	}
}

// injectCode reads the live code buffer and sends it into the
// conversation as a synthetic user message.
func (c *Controller) injectCode(ctx context.Context) {
	code := ""
	if c.cfg.GetCode != nil {
		code = c.cfg.GetCode()
	}

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	c.send(ctx, transport, realtime.EventConversationItemCreate(FormatCodeContext(code)))
	c.ledger.AddCodeSent(code)
}

func (c *Controller) requestResponse(ctx context.Context) {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	c.send(ctx, transport, realtime.EventResponseCreate())
}

// handleFunctionCall services the run_tests tool: execute the visible
// tests against the current code, record the run, and return the
// outcome to the model.
func (c *Controller) handleFunctionCall(ctx context.Context, item *realtime.ConversationItem) {
	if item.Name != "run_tests" || c.cfg.RunTests == nil {
		return
	}

	code := ""
	if c.cfg.GetCode != nil {
		code = c.cfg.GetCode()
	}
	results := c.cfg.RunTests(code)
	c.ledger.AddTestRun(results)

	payload, err := json.Marshal(results)
	if err != nil {
		slog.Error("marshal test results", "error", err)
		return
	}
	c.ledger.AddToolCall(item.Name, string(payload))

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	c.send(ctx, transport, realtime.EventFunctionCallOutput(item.CallID, string(payload)))
	c.send(ctx, transport, realtime.EventResponseCreate())
}

func (c *Controller) send(ctx context.Context, transport Transport, event map[string]interface{}) {
	if transport == nil {
		return
	}
	if err := transport.Send(ctx, event); err != nil {
		slog.Error("send event", "type", event["type"], "error", err)
	}
}

// handleTransportError surfaces an abnormal closure and tears the
// session down. A graceful remote close (code 1000) ends the session
// without an error; nothing auto-reconnects either way.
func (c *Controller) handleTransportError(err error) {
	var ce *realtime.CloseError
	if errors.As(err, &ce) && ce.Code == 1000 {
		c.teardown("")
		return
	}
	c.teardown(err.Error())
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// teardown releases all session resources exactly once, records the
// error text if any, and hands the completed record to OnComplete.
func (c *Controller) teardown(errMsg string) {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosed {
		if errMsg != "" {
			c.lastErr = errMsg
		}
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.configured = false
	if errMsg != "" {
		c.lastErr = errMsg
	}
	cancel := c.cancel
	transport := c.transport
	c.transport = nil
	c.sendCh = nil
	id := c.id
	startedAt := c.startedAt
	systemPrompt := c.systemPrompt
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := c.capture.Stop(); err != nil {
		slog.Error("stop capture", "error", err)
	}
	c.player.Stop()
	if transport != nil {
		if err := transport.Close(); err != nil {
			slog.Error("close transport", "error", err)
		}
	}

	out := types.InterviewOutput{
		ID:           id,
		StartedAt:    startedAt,
		EndedAt:      time.Now(),
		Input:        c.cfg.Input,
		SystemPrompt: systemPrompt,
		Transcript:   c.ledger.Entries(),
		FinalResults: lastTestResults(c.ledger.Entries()),
	}
	c.cfg.Metrics.RecordSessionEnd(out.EndedAt.Sub(out.StartedAt).Seconds())

	if errMsg != "" {
		slog.Error("interview session ended", "id", id, "error", errMsg)
	} else {
		slog.Info("interview session ended", "id", id)
	}

	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(out)
	}
}

// lastTestResults returns the results of the most recent test run.
func lastTestResults(entries []types.TranscriptEntry) []types.TestResult {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == types.RoleTestRun {
			return entries[i].TestResults
		}
	}
	return nil
}
