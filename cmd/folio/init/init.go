// Package initcmder provides the init command for initializing a local .folio
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/config"
)

const (
	dirName    = ".folio"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .folio/ directory in the current working directory.

Creates a local .folio/ directory that takes precedence over the default
~/.folio/ directory for configuration, credentials, chat history, document
storage, and the vector index. A config.toml is written alongside it unless
one already exists.

This is useful for maintaining a separate document library per project.

The --preset flag selects the provider stack for the generated config. It
accepts a preset name (gemini, ollama, openai) or an http(s) URL pointing at
a config.toml to fetch. Passing --preset always rewrites config.toml, so
re-running init with a different preset switches providers in place.

Examples:
  folio init
  folio init --preset ollama
  folio init --preset https://example.com/team/folio-config.toml`

const initShortDesc string = "Initialize a local .folio/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.preset, "preset", "p", "", "Provider preset for the generated config (gemini, ollama, openai, or a config.toml URL)")

	return cmd
}

func (c *initCommander) run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()
	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .folio directory: %w", err)
		}
	}

	configPath := filepath.Join(dir, configFile)
	_, statErr := os.Stat(configPath)
	configExists := statErr == nil

	// An existing config survives a bare re-init; an explicit --preset
	// rewrites it.
	if configExists && c.preset == "" {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	cfg, err := c.buildConfig()
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if alreadyExists {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		fmt.Printf("Initialized .folio directory: %s\n", dir)
	}
	fmt.Printf("Wrote %s to %s\n", c.configDescription(), configPath)
	return nil
}

func (c *initCommander) buildConfig() (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case isRemotePreset(c.preset):
		return fetchRemoteConfig(c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func (c *initCommander) configDescription() string {
	switch {
	case c.preset == "":
		return "default config"
	case isRemotePreset(c.preset):
		return "remote config"
	default:
		return fmt.Sprintf("%s preset config", strings.ToLower(c.preset))
	}
}

func isRemotePreset(preset string) bool {
	return strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://")
}

// fetchRemoteConfig downloads and parses a config.toml from the given URL.
// Teams can point new machines at a shared config this way.
func fetchRemoteConfig(url string) (*config.Config, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
