package main

import (
	"fmt"
	"io"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show the effective configuration",
	Long: `View greengate configuration.

Without arguments, displays every key with its value and where it came from.
With one argument (key), displays the value for that key.

User configuration lives at ~/.config/greengate/config.yaml. Project overrides
go in .greengate.yaml, and GREENGATE_* environment variables override both
(for example GREENGATE_LOOP_MAX_ITERATIONS).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			return displayConfigKey(a, args[0])
		}
		return displayAllConfig(a)
	},
}

// configEntry is one effective config value.
type configEntry struct {
	Key    string           `json:"key"`
	Value  any              `json:"value"`
	Source config.KeySource `json:"source"`
}

func configEntries(cfg *config.Config) []configEntry {
	keys := cfg.Keys()
	entries := make([]configEntry, 0, len(keys))
	for _, key := range keys {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		entries = append(entries, configEntry{Key: key, Value: value, Source: cfg.Source(key)})
	}
	return entries
}

// displayAllConfig prints all configuration values.
func displayAllConfig(a *app) error {
	entries := configEntries(a.cfg)
	return a.render(entries, func(w io.Writer) {
		if a.cfg.File != "" {
			fmt.Fprintf(w, "# %s\n", a.cfg.File)
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s: %s (%s)\n", e.Key, displayValue(e.Value), e.Source)
		}
	})
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(a *app, key string) error {
	value, err := a.cfg.Get(key)
	if err != nil {
		return fmt.Errorf("%w: %s", err, key)
	}
	entry := configEntry{Key: key, Value: value, Source: a.cfg.Source(key)}
	return a.render(entry, func(w io.Writer) {
		fmt.Fprintln(w, displayValue(value))
	})
}

func displayValue(v any) string {
	s := cast.ToString(v)
	if s == "" {
		return `""`
	}
	return s
}
