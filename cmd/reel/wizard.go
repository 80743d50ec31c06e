package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/reel/pkg/config"
)

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// runWizard walks through the source and layout choices and writes the
// config file to path. An existing file seeds the defaults, so re-running
// --init edits rather than resets.
func runWizard(path string) error {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	providerForm := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should images come from?").
				Options(
					huh.NewOption("HTTP API (picsum-style list endpoint)", "http"),
					huh.NewOption("SQLite catalog (local database)", "sqlite"),
					huh.NewOption("JSONL catalog (local file)", "file"),
				).
				Value(&cfg.Source.Provider),
		),
	)
	if err := providerForm.Run(); err != nil {
		return err
	}

	switch cfg.Source.Provider {
	case "http":
		httpForm := newForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Base URL").
					Description("The API host, e.g. https://picsum.photos").
					Value(&cfg.Source.BaseURL).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("base URL is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("API key").
					Description("Sent as a bearer token; leave empty for public APIs").
					Value(&cfg.Source.APIKey),
			),
		)
		if err := httpForm.Run(); err != nil {
			return err
		}
	case "sqlite", "file":
		catalogForm := newForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Catalog path").
					Description("Path to the catalog " + map[string]string{"sqlite": "database", "file": "JSONL file"}[cfg.Source.Provider]).
					Value(&cfg.Source.Catalog).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("catalog path is required")
						}
						if _, err := os.Stat(s); err != nil {
							return fmt.Errorf("cannot read %s", s)
						}
						return nil
					}),
			),
		)
		if err := catalogForm.Run(); err != nil {
			return err
		}
	}

	captions := cfg.CaptionsEnabled()
	layoutForm := newForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Tiles per row").
				Options(
					huh.NewOption("1 (large tiles)", 1),
					huh.NewOption("2", 2),
					huh.NewOption("3", 3),
					huh.NewOption("4 (dense)", 4),
				).
				Value(&cfg.UI.Columns),
			huh.NewConfirm().
				Title("Show author captions under tiles?").
				Value(&captions),
			huh.NewSelect[string]().
				Title("Contact sheet format").
				Options(
					huh.NewOption("PNG", "png"),
					huh.NewOption("SVG", "svg"),
				).
				Value(&cfg.Export.Format),
		),
	)
	if err := layoutForm.Run(); err != nil {
		return err
	}
	cfg.UI.Captions = &captions

	if err := cfg.Validate(); err != nil {
		return err
	}

	save := true
	confirmForm := newForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write %s?", path)).
				Value(&save),
		),
	)
	if err := confirmForm.Run(); err != nil {
		return err
	}
	if !save {
		fmt.Println("Setup cancelled, nothing written.")
		return nil
	}

	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Run 'reel' to start the stream.")
	return nil
}
