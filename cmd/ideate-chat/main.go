package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/prodkit/ideate/cmd/ideate-chat/pkg/demo"
	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/config"
	"github.com/prodkit/ideate/pkg/flow"
	"github.com/prodkit/ideate/pkg/insight"
	"github.com/prodkit/ideate/pkg/persistence/insightstore"
	"github.com/prodkit/ideate/pkg/persistence/turnstore"
	"github.com/prodkit/ideate/pkg/stream"
	"github.com/prodkit/ideate/pkg/stream/redistransport"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	deltaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

func main() {
	var configPath string
	var sessionID string
	var surfaceCheckpoints bool

	root := &cobra.Command{
		Use:   "ideate-chat",
		Short: "Interactive discovery chat running the streaming turn pipeline offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if surfaceCheckpoints {
				cfg.SurfaceCheckpoints = true
			}
			setupLogging(cfg.LogLevel)
			return runChat(cmd.Context(), cfg, sessionID)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to yaml config")
	root.Flags().StringVar(&sessionID, "session", "", "session id (default: random)")
	root.Flags().BoolVar(&surfaceCheckpoints, "surface-checkpoints", false, "print checkpoint sections when built")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func setupLogging(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func runChat(ctx context.Context, cfg config.Config, sessionID string) error {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	pub, sub, err := redistransport.Build(cfg.Redis)
	if err != nil {
		return err
	}

	turns, insights, cleanup, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	backend := demo.NewBackend()
	engine := demo.NewEngine(pub, 30*time.Millisecond)
	runner := insight.NewRunner(insight.ExtractorFunc(demo.Extractor()), insights)

	f, err := flow.New(flow.Config{
		SessionID:          sessionID,
		Backend:            backend,
		Streamer:           stream.NewSession(sub, engine, stream.WithIdleTimeout(cfg.IdleTimeout)),
		Turns:              turns,
		Insights:           insights,
		Runner:             runner,
		Publisher:          pub,
		BaseCtx:            ctx,
		CheckpointEvery:    cfg.CheckpointEvery,
		SurfaceCheckpoints: cfg.SurfaceCheckpoints,
		Provider:           cfg.Provider,
		Model:              cfg.Model,
		OnDelta: func(d stream.Delta) {
			fmt.Print(deltaStyle.Render(d.Text))
		},
	})
	if err != nil {
		return err
	}
	defer f.Close()

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		<-gctx.Done()
		f.Cancel()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return chatLoop(gctx, f, cfg)
	})
	return g.Wait()
}

func chatLoop(ctx context.Context, f *flow.Flow, cfg config.Config) error {
	fmt.Println(infoStyle.Render("Describe your product idea. Ctrl-D to quit."))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/metrics" {
			printMetrics(f.Metrics())
			continue
		}
		if line == "/reanalyze" {
			n, err := f.Reanalyze(ctx)
			if err != nil {
				fmt.Println(errorStyle.Render("re-analyze failed: " + err.Error()))
				continue
			}
			fmt.Println(infoStyle.Render(fmt.Sprintf("re-analysis stored %d insights", n)))
			continue
		}

		if _, err := f.Submit(ctx, line); err != nil {
			fmt.Println()
			fmt.Println(errorStyle.Render("error: " + err.Error()))
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		fmt.Println()
		if sections := f.LastCheckpoint(); len(sections) > 0 && cfg.SurfaceCheckpoints {
			for _, sec := range sections {
				fmt.Println(infoStyle.Render(fmt.Sprintf("[checkpoint] %s (%.2f): %s", sec.Name, sec.QualityScore, sec.Summary)))
			}
		}
	}
}

func printMetrics(m chat.QualityMetrics) {
	for _, topic := range chat.TopicCategories() {
		mark := " "
		if m.Coverage[topic] {
			mark = "x"
		}
		fmt.Println(infoStyle.Render(fmt.Sprintf("  [%s] %s", mark, topic)))
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("  score %.2f, ready=%v", m.Score, m.ReadyForPRD)))
}

func buildStores(cfg config.Config) (turnstore.Store, insightstore.Store, func(), error) {
	if cfg.DBPath == "" {
		return turnstore.NewMemoryStore(), insightstore.NewMemoryStore(), func() {}, nil
	}
	turns, err := turnstore.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	insights, err := insightstore.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		_ = turns.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = insights.Close()
		_ = turns.Close()
	}
	return turns, insights, cleanup, nil
}
