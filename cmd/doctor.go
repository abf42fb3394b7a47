package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/webpilot/internal/config"
	"github.com/nextlevelbuilder/webpilot/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("webpilot doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Provider:")
	fmt.Printf("    %-12s %s\n", "Name:", cfg.Provider.Name)
	fmt.Printf("    %-12s %s\n", "Model:", cfg.Provider.Model)
	checkAPIKey(cfg.Provider.APIKey)

	fmt.Println()
	fmt.Println("  Browser:")
	fmt.Printf("    %-12s %v\n", "Headless:", cfg.Browser.Headless)
	checkChromeBinary()

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-12s %s\n", "Addr:", cfg.Gateway.Addr)
	if cfg.Gateway.Token == "" {
		fmt.Printf("    %-12s open (no token configured)\n", "Auth:")
	} else {
		fmt.Printf("    %-12s token\n", "Auth:")
	}

	fmt.Println()
	fmt.Println("  Store:")
	fmt.Printf("    %-12s %s\n", "Backend:", cfg.Store.Backend)
	if cfg.Store.Backend == "postgres" {
		if cfg.Store.DSN == "" {
			fmt.Printf("    %-12s MISSING\n", "DSN:")
		} else {
			fmt.Printf("    %-12s set\n", "DSN:")
		}
	} else {
		fmt.Printf("    %-12s %s\n", "Path:", cfg.Store.Path)
	}

	fmt.Println()
	fmt.Printf("  Actions:  %s", cfg.Actions.Dir)
	if _, err := os.Stat(cfg.Actions.Dir); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkAPIKey(apiKey string) {
	if apiKey == "" {
		fmt.Printf("    %-12s NOT SET (set WEBPILOT_API_KEY)\n", "API key:")
		return
	}
	masked := apiKey
	if len(masked) > 8 {
		masked = masked[:4] + strings.Repeat("*", len(masked)-8) + masked[len(masked)-4:]
	}
	fmt.Printf("    %-12s %s\n", "API key:", masked)
}

func checkChromeBinary() {
	candidates := []string{"google-chrome", "chromium", "chromium-browser", "chrome"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			fmt.Printf("    %-12s %s\n", "Chrome:", path)
			return
		}
	}
	fmt.Printf("    %-12s not on PATH (rod will download a managed build)\n", "Chrome:")
}
