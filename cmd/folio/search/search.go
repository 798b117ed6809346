// Package searchcmder provides the search command for semantic search over the library.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query  string
	topK   int
	docIDs []string
	quiet  bool

	apiTarget string
}

const searchLongDesc string = `Search the document library without generating an answer.

Embeds the query and returns the most similar chunks with their scores,
document IDs, and a content preview. Requires a running folio API server.

Use --quiet to output only document IDs, one per line. This is useful for
piping into other commands like folio ask --doc.

Example:
  folio search "refund policy"
  folio search "error handling" --api-target http://localhost:8081
  folio search "quarterly targets" --top 10
  folio ask "summarize the policy" --doc $(folio search "refund" --quiet --top 1)`

const searchShortDesc string = "Search the document library"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
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
			if !cmd.Flags().Changed("top") {
				cmder.topK = int(cfg.Retrieval.TopK)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", int(defaults.Retrieval.TopK), "Number of results to return")
	cmd.Flags().StringSliceVar(&cmder.docIDs, "doc", nil, "Restrict search to the given document IDs")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only document IDs, one per line (for piping)")
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *searchCommander) run() error {
	output, err := SearchAPI(c.apiTarget, c.query, c.topK, c.docIDs)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		seen := make(map[string]bool)
		for _, result := range output.Results {
			if seen[result.DocumentID] {
				continue
			}
			seen[result.DocumentID] = true
			fmt.Println(result.DocumentID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result retrieve.SourceChunk) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.SimilarityScore)),
		idStyle.Render(result.DocumentID),
	)

	fmt.Printf("  %s %s\n",
		nameStyle.Render(result.Filename),
		dimStyle.Render(fmt.Sprintf("(chunk %d)", result.ChunkIndex)),
	)

	preview := strings.ReplaceAll(utils.Truncate(result.Content, 160), "\n", " ")
	fmt.Printf("  %s\n\n", previewStyle.Render(preview))
}

// SearchAPI calls the folio search API and returns the parsed output.
// Exported so other commands can reuse it.
func SearchAPI(apiTarget, query string, topK int, documentIDs []string) (*retrieve.SearchOutput, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/api/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("top_k", strconv.Itoa(topK))
	if len(documentIDs) > 0 {
		q.Set("document_ids", strings.Join(documentIDs, ","))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to folio API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output retrieve.SearchOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
