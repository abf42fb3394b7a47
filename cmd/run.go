package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/webpilot/internal/agent"
	"github.com/nextlevelbuilder/webpilot/internal/providers"
	"github.com/nextlevelbuilder/webpilot/internal/tools"
	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

func runCmd() *cobra.Command {
	var (
		headful       bool
		maxIterations int
		jsonOutput    bool
	)
	cmd := &cobra.Command{
		Use:   "run <task...>",
		Short: "Run a single browser task and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(strings.Join(args, " "), headful, maxIterations, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&headful, "headful", false, "run Chrome with a visible window")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap (0 = config default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full final state as JSON")
	return cmd
}

func runOnce(task string, headful bool, maxIterations int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if headful {
		cfg.Browser.Headless = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := browser.New(browser.WithHeadless(cfg.Browser.Headless))
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, mgr)

	loader := tools.NewLoader(cfg.Actions.Dir, mgr)
	loader.Load(registry)

	completer := providers.NewOpenAIClient(
		cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)

	loop := agent.NewLoop("cli", completer, registry, agent.LoopConfig{
		MaxIterations: cfg.Agent.MaxIterations,
		HistoryWindow: cfg.Agent.HistoryWindow,
		TokenBudget:   cfg.Agent.TokenBudget,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		Temperature:   cfg.Provider.Temperature,
	})

	// Ctrl-C cancels the run cooperatively.
	go func() {
		<-ctx.Done()
		loop.Stop()
	}()

	final, err := loop.Run(ctx, agent.RunRequest{
		Task:          task,
		MaxIterations: maxIterations,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	switch final.Phase {
	case agent.PhaseCompleted:
		fmt.Printf("completed in %d iteration(s)\n", final.Iterations)
		if final.Result != "" {
			fmt.Println(final.Result)
		}
	default:
		fmt.Printf("failed after %d iteration(s): %s\n", final.Iterations, final.FailReason)
		os.Exit(1)
	}
	return nil
}
