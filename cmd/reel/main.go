package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/reel/pkg/config"
	"github.com/vanderheijden86/reel/pkg/ui"
	"github.com/vanderheijden86/reel/pkg/version"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	initFlag := flag.Bool("init", false, "Interactive setup: write a config file and exit")
	configPath := flag.String("config", "", "Config file path (default: "+config.ConfigPath()+")")
	provider := flag.String("provider", "", "Image source: http, sqlite or file (overrides config)")
	catalog := flag.String("catalog", "", "Catalog path for the sqlite/file providers (overrides config)")
	query := flag.String("query", "", "Initial tag filter (overrides config)")
	columns := flag.Int("columns", 0, "Tiles per row (overrides config)")
	robotStats := flag.Int("robot-stats", 0, "Run N headless demand cycles and print engine stats as JSON")
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: reel [options]")
		fmt.Println("\nAn endless image stream for your terminal.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("reel %s\n", version.Version)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}

	if *initFlag {
		if err := runWizard(path); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override both the file and REEL_* env vars.
	if *provider != "" {
		cfg.Source.Provider = *provider
	}
	if *catalog != "" {
		cfg.Source.Catalog = *catalog
	}
	if *query != "" {
		cfg.Source.Query = *query
	}
	if *columns > 0 {
		cfg.UI.Columns = *columns
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'reel --init' to set up interactively.")
		os.Exit(1)
	}

	if *robotStats > 0 {
		if err := runRobot(cfg, *robotStats); err != nil {
			fmt.Fprintf(os.Stderr, "Robot run failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	m, err := ui.NewModel(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting reel: %v\n", err)
		os.Exit(1)
	}
	defer m.Stop()

	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running reel: %v\n", err)
		os.Exit(1)
	}
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set REEL_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("REEL_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
