// Command voxprep runs a voice-driven mock coding interview against the
// realtime voice API, archives the finished session, and serves live
// session state over a local HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/voxprep/voxprep/capture"
	"github.com/voxprep/voxprep/config"
	"github.com/voxprep/voxprep/internal/api"
	"github.com/voxprep/voxprep/internal/metrics"
	"github.com/voxprep/voxprep/internal/types"
	"github.com/voxprep/voxprep/interview"
	"github.com/voxprep/voxprep/interview/realtime"
	"github.com/voxprep/voxprep/playback"
	"github.com/voxprep/voxprep/scoring"
	"github.com/voxprep/voxprep/store"
)

// playbackRate is the output PCM rate of the realtime voice API.
const playbackRate = 24000

func main() {
	inputPath := flag.String("input", "", "path to the interview definition JSON (required)")
	codePath := flag.String("code", "", "path to the candidate's working file, re-read on every turn")
	noScore := flag.Bool("no-score", false, "skip post-interview scoring")
	flag.Parse()

	if err := run(*inputPath, *codePath, *noScore); err != nil {
		slog.Error("voxprep failed", "error", err)
		os.Exit(1)
	}
}

func run(inputPath, codePath string, noScore bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if inputPath == "" {
		return fmt.Errorf("no interview definition (-input)")
	}

	input, err := loadInput(inputPath)
	if err != nil {
		return err
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	archive, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	player, err := playback.NewOto(playbackRate)
	if err != nil {
		return fmt.Errorf("open playback: %w", err)
	}
	defer player.Close()

	m := metrics.New()

	var scorer *scoring.Scorer
	if !noScore {
		scorer = scoring.NewScorer(cfg.APIKey, cfg.ScoringModel)
	}

	done := make(chan struct{})
	ctrl := interview.New(interview.Config{
		Input: input,
		Voice: cfg.Voice,
		GetCode: func() string {
			return readCode(codePath)
		},
		GetTestCases: func() []types.TestCase {
			return input.TestCases
		},
		// Visible tests execute in the candidate's own environment, not in
		// this process, so the run_tests tool stays disabled here.
		Dial: func(ctx context.Context) (interview.Transport, error) {
			client := realtime.NewClient(realtime.ClientConfig{
				APIKey: cfg.APIKey,
				Model:  cfg.Model,
			})
			if err := client.Connect(ctx); err != nil {
				return nil, err
			}
			return client, nil
		},
		Metrics: m,
		OnComplete: func(out types.InterviewOutput) {
			finish(archive, scorer, out)
			close(done)
		},
	}, capture.New(), player)

	srv := api.NewServer(cfg.HTTPAddr, ctrl, archive)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("api server", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = ctrl.Start(dialCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("start interview: %w", err)
	}

	slog.Info("interview running", "question", firstLine(input.Question), "api", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		if err := ctrl.Stop(); err != nil {
			return err
		}
		<-done
	case <-done:
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	})))
}

func loadInput(path string) (types.InterviewInput, error) {
	var input types.InterviewInput
	data, err := os.ReadFile(path)
	if err != nil {
		return input, fmt.Errorf("read interview definition: %w", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("parse interview definition: %w", err)
	}
	if input.Question == "" {
		return input, fmt.Errorf("interview definition %s has no question", path)
	}
	return input, nil
}

// readCode snapshots the candidate's working file. A missing or
// unreadable file reads as empty, never as an error mid-turn.
func readCode(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// finish archives the completed interview and, when a scorer is
// configured, grades it.
func finish(archive *store.Store, scorer *scoring.Scorer, out types.InterviewOutput) {
	if err := archive.SaveInterview(out); err != nil {
		slog.Error("archive interview", "id", out.ID, "error", err)
	} else {
		slog.Info("interview archived", "id", out.ID, "entries", len(out.Transcript))
	}

	if scorer == nil || len(out.Transcript) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	card, err := scorer.Score(ctx, out)
	if err != nil {
		slog.Error("score interview", "id", out.ID, "error", err)
		return
	}
	slog.Info("interview scored", "id", out.ID, "overall", card.Overall, "summary", card.Summary)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
