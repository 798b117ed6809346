// Package askcmder provides the ask command for one-shot document Q&A.
package askcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/llm/provider"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/utils"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

var (
	rankStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type askCommander struct {
	question string
	topK     int
	docIDs   []string
	local    bool

	apiTarget string

	configDir string
	debug     bool
	logger    *slog.Logger
}

const askLongDesc string = `Ask a question against the indexed document library.

Sends the question to a running folio API server, which retrieves the most
relevant chunks and generates a grounded answer with citations. The answer
is rendered as markdown; cited sources follow with their similarity scores.

Use --local to run the retrieval pipeline in-process against the local
index instead of a server. Local mode needs an embedding and LLM API key
(see folio auth).

Examples:
  folio ask "What is the refund policy?"
  folio ask "Who approves expenses?" --top 3
  folio ask "What changed in v2?" --doc doc_a1b2c3d4e5f6
  folio ask "What is the refund policy?" --local`

const askShortDesc string = "Ask a question against the library"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
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
			if !cmd.Flags().Changed("top") {
				cmder.topK = int(cfg.Retrieval.TopK)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.question = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", int(defaults.Retrieval.TopK), "Number of chunks to retrieve")
	cmd.Flags().StringSliceVar(&cmder.docIDs, "doc", nil, "Restrict retrieval to the given document IDs")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Run against the local index instead of a server")
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithDebug(true))
	}

	var answer *retrieve.Answer
	var err error

	if c.local {
		answer, err = c.askLocal(ctx)
	} else {
		answer, err = AskAPI(c.apiTarget, c.question, c.topK, c.docIDs)
	}
	if err != nil {
		return err
	}

	rendered, err := cliui.RenderMarkdown(answer.Answer)
	if err != nil {
		rendered = answer.Answer
	}
	fmt.Println(rendered)

	if len(answer.Sources) > 0 {
		fmt.Printf("  %s\n\n", cliui.HeaderStyle.Render("Sources"))
		for i, source := range answer.Sources {
			c.printSource(i+1, source)
		}
	}

	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf(
		"%d chunks · embed %.0fms · retrieve %.0fms · generate %.0fms · total %.0fms",
		answer.Metrics.ChunksRetrieved,
		answer.Metrics.EmbeddingLatencyMs,
		answer.Metrics.RetrievalLatencyMs,
		answer.Metrics.GenerationLatencyMs,
		answer.Metrics.TotalLatencyMs,
	)))

	return nil
}

func (c *askCommander) printSource(rank int, source retrieve.SourceChunk) {
	fmt.Printf("  %s  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.NameStyle.Render(source.Filename),
		cliui.DimStyle.Render(fmt.Sprintf("chunk %d", source.ChunkIndex)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", source.SimilarityScore)),
	)

	preview := strings.ReplaceAll(utils.Truncate(source.Content, 100), "\n", " ")
	fmt.Printf("      %s\n\n", cliui.PreviewStyle.Render(preview))
}

// askLocal runs the retrieval pipeline in-process against the local index.
func (c *askCommander) askLocal(ctx context.Context) (*retrieve.Answer, error) {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()
	dir, err := ddm.Ensure(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving folio directory: %w", err)
	}

	vectorPath := cfg.VectorStore.Path
	if vectorPath == "" {
		switch cfg.VectorStore.Provider {
		case "sqlitevec":
			vectorPath = filepath.Join(dir, "vectors.db")
		default:
			vectorPath = filepath.Join(dir, "index")
		}
	}

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Dimension:    int(cfg.Embedding.Dimensions),
		Path:         vectorPath,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	defer driver.Close()

	if err := driver.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading vector index: %w", err)
	}

	embedKey, err := creds.ResolveKey(cfg.Embedding.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolving %s credentials: %w", cfg.Embedding.Provider, err)
	}
	if embedKey == "" && credentials.IsSupportedProvider(cfg.Embedding.Provider) {
		return nil, fmt.Errorf("no API key for embedding provider %q: set %s or run 'folio auth %s'",
			cfg.Embedding.Provider,
			credentials.EnvVarForProvider(cfg.Embedding.Provider),
			cfg.Embedding.Provider,
		)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embedKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	llmKey, err := creds.ResolveKey(cfg.LLM.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolving %s credentials: %w", cfg.LLM.Provider, err)
	}
	if llmKey == "" && credentials.IsSupportedProvider(cfg.LLM.Provider) {
		return nil, fmt.Errorf("no API key for LLM provider %q: set %s or run 'folio auth %s'",
			cfg.LLM.Provider,
			credentials.EnvVarForProvider(cfg.LLM.Provider),
			cfg.LLM.Provider,
		)
	}

	generator, err := provider.NewGenerator(&provider.NewGeneratorOpts{
		ProviderType: cfg.LLM.Provider,
		TargetURL:    cfg.LLM.Target,
		Model:        cfg.LLM.Model,
		APIKey:       llmKey,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    int(cfg.LLM.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	return retrieve.Ask(ctx, c.question, retrieve.Options{
		TopK:        c.topK,
		DocumentIDs: c.docIDs,
		Threshold:   float32(cfg.Retrieval.ScoreThreshold),
	}, embedder, driver, generator, c.logger)
}

// AskAPI posts a question to the folio ask endpoint and returns the parsed
// answer. Exported so other commands can reuse it.
func AskAPI(apiTarget, question string, topK int, documentIDs []string) (*retrieve.Answer, error) {
	askURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	askURL.Path = "/api/v1/ask"

	body, err := json.Marshal(api.AskRequest{
		Question:    question,
		DocumentIDs: documentIDs,
		TopK:        topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, askURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to folio API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr llm.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ask failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("ask request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var answer retrieve.Answer
	if err := json.Unmarshal(respBody, &answer); err != nil {
		return nil, fmt.Errorf("failed to parse ask response: %w", err)
	}

	return &answer, nil
}
