package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/webpilot/internal/agent"
	"github.com/nextlevelbuilder/webpilot/internal/bus"
	"github.com/nextlevelbuilder/webpilot/internal/config"
	"github.com/nextlevelbuilder/webpilot/internal/gateway"
	"github.com/nextlevelbuilder/webpilot/internal/gateway/methods"
	"github.com/nextlevelbuilder/webpilot/internal/providers"
	"github.com/nextlevelbuilder/webpilot/internal/store"
	"github.com/nextlevelbuilder/webpilot/internal/store/pg"
	"github.com/nextlevelbuilder/webpilot/internal/store/sqlite"
	"github.com/nextlevelbuilder/webpilot/internal/tools"
	"github.com/nextlevelbuilder/webpilot/internal/tracing"
	"github.com/nextlevelbuilder/webpilot/internal/tracing/otelexport"
	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

func serveCmd() *cobra.Command {
	var headful bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the browser, agent host and WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(headful)
		},
	}
	cmd.Flags().BoolVar(&headful, "headful", false, "run Chrome with a visible window")
	return cmd
}

func runServe(headful bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if headful {
		cfg.Browser.Headless = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Browser
	mgr := browser.New(browser.WithHeadless(cfg.Browser.Headless))
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	// Action registry: builtins plus custom manifests
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, mgr)

	if len(cfg.Policy.Rules) > 0 {
		policy, err := tools.NewPolicy(cfg.Policy.Rules)
		if err != nil {
			return fmt.Errorf("compile policy rules: %w", err)
		}
		registry.SetPolicy(policy)
	}
	if cfg.Actions.RPM > 0 {
		registry.SetRateLimiter(tools.NewRateLimiter(cfg.Actions.RPM))
	}

	loader := tools.NewLoader(cfg.Actions.Dir, mgr)
	if err := loader.Load(registry); err != nil {
		slog.Warn("custom action load failed", "dir", cfg.Actions.Dir, "error", err)
	}

	// Planner/evaluator model
	completer := providers.NewOpenAIClient(
		cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)

	// Event bus and per-scope loop registry
	events := bus.New()
	agents := agent.NewRouter()
	agents.SetResolver(func(scope string) (agent.Agent, error) {
		return agent.NewLoop(scope, completer, registry, agent.LoopConfig{
			MaxIterations: cfg.Agent.MaxIterations,
			HistoryWindow: cfg.Agent.HistoryWindow,
			TokenBudget:   cfg.Agent.TokenBudget,
			SystemPrompt:  cfg.Agent.SystemPrompt,
			Temperature:   cfg.Provider.Temperature,
		}, agent.WithEvents(events), agent.WithScope(scope)), nil
	})

	// Run history store
	runs, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer runs.Close()

	// Optional OTLP tracing
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint != "" {
		exp, err := otelexport.New(ctx, otelexport.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			Protocol:    cfg.Tracing.Protocol,
			Insecure:    cfg.Tracing.Insecure,
			ServiceName: cfg.Tracing.ServiceName,
			Headers:     cfg.Tracing.Headers,
		})
		if err != nil {
			slog.Warn("tracing disabled: exporter init failed", "error", err)
		} else {
			collector := tracing.NewCollector(exp)
			collector.Start()
			defer collector.Stop()

			bridge := tracing.NewBridge(collector)
			bridge.Attach(events)
			defer bridge.Detach(events)
		}
	}

	// Gateway
	srv := gateway.NewServer(gateway.Config{
		Addr:  cfg.Gateway.Addr,
		Token: cfg.Gateway.Token,
		RPM:   cfg.Gateway.RPM,
		Burst: cfg.Gateway.Burst,
	}, agents, events)
	methods.NewRunMethods(agents, runs, agent.NewClassifier()).Register(srv.Router())
	methods.NewBrowserMethods(mgr).Register(srv.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	// Hot reload: re-read custom action manifests when the config changes.
	// Only the action set applies live; other settings need a restart.
	g.Go(func() error {
		err := config.Watch(gctx, resolveConfigPath(), func(newCfg *config.Config) {
			loader.Reload(registry)
			slog.Info("custom actions reloaded; restart to apply other settings")
		})
		if err != nil && gctx.Err() == nil {
			slog.Debug("config watcher stopped", "error", err)
		}
		return nil
	})

	slog.Info("webpilot serving", "addr", cfg.Gateway.Addr, "headless", cfg.Browser.Headless)
	return g.Wait()
}

// openStore creates the configured run store backend.
func openStore(cfg store.Config) (store.RunStore, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store backend postgres requires a dsn")
		}
		return pg.New(cfg.DSN)
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		return sqlite.New(cfg.Path)
	}
}
