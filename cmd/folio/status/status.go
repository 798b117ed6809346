// Package statuscmder provides the status command for inspecting the local
// folio setup and a running server.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/metrics"
)

const statusLongDesc string = `Show the local folio setup and the state of a running server.

Displays the resolved .folio/ directory, the configured providers, and the
saved chat transcript. If a folio API server is reachable at the configured
target, also reports its health and query metrics.

Examples:
  folio status
  folio status --api-target http://localhost:8081`

const statusShortDesc string = "Show local setup and server state"

const statusKeyWidth = 14

type statusCommander struct {
	apiTarget string
	configDir string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *statusCommander) run() error {
	ddm := dotdir.NewManager()

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println()

	dir, err := ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving folio directory: %w", err)
	}
	if dir == "" {
		fmt.Printf("  %s No .folio/ directory found. Run folio init to create one.\n", cliui.DimStyle.Render("●"))
	} else {
		printKV("Directory:", cliui.HashStyle.Render(dir))
	}

	printKV("Storage:", cliui.ValueStyle.Render(cfg.Storage.Provider))
	printKV("Vector store:", cliui.ValueStyle.Render(cfg.VectorStore.Provider))
	printKV("Embedding:", cliui.ValueStyle.Render(fmt.Sprintf("%s (%s, %d dims)", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions)))
	printKV("LLM:", cliui.ValueStyle.Render(fmt.Sprintf("%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)))

	history, err := ddm.LoadHistory(c.configDir)
	if err == nil && history != nil && len(history.Messages) > 0 {
		printKV("Transcript:", cliui.ValueStyle.Render(fmt.Sprintf("%d messages, saved %s ago",
			len(history.Messages),
			cliui.FormatDuration(time.Since(history.SavedAt)),
		)))
	}

	fmt.Println()

	health, err := fetchHealth(c.apiTarget)
	if err != nil {
		fmt.Printf("  %s Server not reachable at %s. Start one with folio serve.\n\n",
			cliui.DimStyle.Render("●"),
			cliui.HashStyle.Render(c.apiTarget),
		)
		return nil
	}

	mark := cliui.SuccessMark
	if health.Status != "healthy" {
		mark = cliui.WarnStyle.Render("!")
	}
	fmt.Printf("  %s Server %s at %s %s\n",
		mark,
		cliui.ValueStyle.Render(health.Status),
		cliui.HashStyle.Render(c.apiTarget),
		cliui.DimStyle.Render("(v"+health.Version+")"),
	)

	ready := "not ready"
	if health.VectorStoreReady {
		ready = "ready"
	}
	printKV("Documents:", cliui.NameStyle.Render(fmt.Sprintf("%d", health.DocumentsCount)))
	printKV("Index:", cliui.ValueStyle.Render(ready))

	if snapshot, err := fetchMetrics(c.apiTarget); err == nil && snapshot.TotalQueries > 0 {
		printKV("Queries:", cliui.ValueStyle.Render(fmt.Sprintf("%d answered (%d without results), avg %.0fms",
			snapshot.TotalQueries,
			snapshot.NoResultQueries,
			snapshot.AvgTotalLatencyMs,
		)))
	}

	fmt.Println()
	return nil
}

func printKV(key, renderedValue string) {
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", statusKeyWidth, key)), renderedValue)
}

func fetchHealth(apiTarget string) (*api.HealthResponse, error) {
	body, err := getJSON(apiTarget + "/api/v1/health")
	if err != nil {
		return nil, err
	}

	var health api.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("parsing health response: %w", err)
	}
	return &health, nil
}

func fetchMetrics(apiTarget string) (*metrics.Snapshot, error) {
	body, err := getJSON(apiTarget + "/api/v1/metrics")
	if err != nil {
		return nil, err
	}

	var snapshot metrics.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing metrics response: %w", err)
	}
	return &snapshot, nil
}

func getJSON(url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
