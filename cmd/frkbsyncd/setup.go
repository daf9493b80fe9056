package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/allaspectsdev/frkbsync/internal/config"
	"github.com/allaspectsdev/frkbsync/internal/daemon"
)

func cmdStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	foreground := fs.BoolP("foreground", "f", false, "run in the foreground instead of daemonizing")
	configPath := fs.StringP("config", "c", "", "path to a config TOML file (overrides the default search path)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(cfg, *foreground); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("frkbsyncd stopped")
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func cmdSetup(args []string) {
	nonInteractive := false
	for _, a := range args {
		if a == "--non-interactive" {
			nonInteractive = true
		}
	}

	if nonInteractive {
		cmdInitConfig()
		fmt.Println("Setup complete. Run 'frkbsyncd start' to begin.")
		return
	}

	fmt.Println("frkbsyncd Setup Wizard")
	fmt.Println("======================")
	fmt.Println()

	// Step 1: generate config.
	cmdInitConfig()

	// Step 2: prompt for the admin token.
	fmt.Println("\nTo set the admin bearer token, run: frkbsyncd keys set-admin-token")
	fmt.Println("To allowlist a caller, run: frkbsyncd keys allow <user-key>")
	fmt.Println()
	fmt.Println("Setup complete. Run 'frkbsyncd start' to begin.")
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "error generating config: %v\n", err)
		os.Exit(1)
	}
}

func cmdInstallService() {
	if err := daemon.InstallService(); err != nil {
		fmt.Fprintf(os.Stderr, "error installing service: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Service installed successfully")
}

func cmdConfigExport(args []string) {
	path := "frkbsyncd-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	// Load current config first.
	config.Load("")
	if err := config.ExportConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "error exporting config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: frkbsyncd config-import <file>")
		os.Exit(1)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error importing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}
