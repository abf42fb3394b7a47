package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/webpilot/internal/tools"
	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

func actionsCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List available actions (builtins plus custom manifests)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions(jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runActions(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// No browser needed to list definitions; the manager stays unstarted.
	mgr := browser.New()
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, mgr)

	loader := tools.NewLoader(cfg.Actions.Dir, mgr)
	loader.Load(registry)

	defs := registry.Definitions()

	if jsonOutput {
		out, err := json.MarshalIndent(defs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Description)
	}
	return w.Flush()
}
