// Package chatcmder provides the chat command for interactive document Q&A.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/metrics"
	"github.com/papercomputeco/folio/pkg/sse"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("folio> ")
)

type chatCommander struct {
	apiTarget string
	topK      int
	docIDs    []string
	fresh     bool

	configDir string
	debug     bool
}

const chatLongDesc string = `Start an interactive Q&A session against the document library.

Each question is sent to a running folio API server and the answer streams
back token by token, followed by the cited sources. Questions are answered
independently against the library; the transcript is kept so a session can
be reviewed and resumed.

The transcript is saved to .folio/history.json after every exchange and
reloaded on the next run. Use --fresh (or /clear inside the session) to
discard it and start over.

Examples:
  folio chat
  folio chat --top 3
  folio chat --fresh
  folio chat --api-target http://localhost:8081`

const chatShortDesc string = "Interactive Q&A session"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", int(defaults.Retrieval.TopK), "Number of chunks to retrieve per question")
	cmd.Flags().StringSliceVar(&cmder.docIDs, "doc", nil, "Restrict retrieval to the given document IDs")
	cmd.Flags().BoolVar(&cmder.fresh, "fresh", false, "Discard the saved transcript and start over")
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *chatCommander) run() error {
	ddm := dotdir.NewManager()

	if c.fresh {
		if err := ddm.ClearHistory(c.configDir); err != nil {
			return fmt.Errorf("clearing transcript: %w", err)
		}
	}

	history, err := ddm.LoadHistory(c.configDir)
	if err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}

	var messages []dotdir.HistoryMessage
	fmt.Println()
	if history != nil && len(history.Messages) > 0 {
		messages = history.Messages
		fmt.Printf("  %s Resuming transcript %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages, saved %s ago)",
				len(messages),
				cliui.FormatDuration(time.Since(history.SavedAt)),
			)),
		)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Server:"),
		cliui.NameStyle.Render(c.apiTarget),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /exit or Ctrl+D to quit, /clear to start over."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/clear" {
			if err := ddm.ClearHistory(c.configDir); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			messages = nil
			fmt.Printf("  %s Transcript cleared\n\n", cliui.SuccessMark)
			continue
		}

		answer, err := c.askAndStream(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		messages = append(messages,
			dotdir.HistoryMessage{Role: "user", Content: input},
			dotdir.HistoryMessage{Role: "assistant", Content: answer},
		)

		// Saved after every exchange so an interrupted session keeps its
		// transcript.
		state := &dotdir.HistoryState{SavedAt: time.Now(), Messages: messages}
		if err := ddm.SaveHistory(state, c.configDir); err != nil {
			fmt.Fprintf(os.Stderr, "  %s saving transcript: %v\n", cliui.FailMark, err)
		}

		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// askAndStream sends one question to the streaming ask endpoint and prints
// the answer as it arrives. Returns the full answer text.
func (c *chatCommander) askAndStream(question string) (string, error) {
	body, err := json.Marshal(api.AskRequest{
		Question:    question,
		DocumentIDs: c.docIDs,
		TopK:        c.topK,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.apiTarget + "/api/v1/ask/stream"
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to folio API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr llm.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("ask failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("ask request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	fmt.Print(assistantPrompt)

	var fullAnswer strings.Builder
	var meta api.StreamMeta
	var queryMetrics metrics.QueryMetrics
	haveMetrics := false

	reader := sse.NewReader(resp.Body)
	for {
		event, err := reader.Next()
		if err != nil {
			return fullAnswer.String(), fmt.Errorf("reading stream: %w", err)
		}
		if event == nil {
			break
		}

		switch event.Type {
		case "meta":
			_ = json.Unmarshal([]byte(event.Data), &meta)
		case "delta":
			var delta api.StreamDelta
			if err := json.Unmarshal([]byte(event.Data), &delta); err != nil {
				continue
			}
			fmt.Print(delta.Text)
			fullAnswer.WriteString(delta.Text)
		case "done":
			if err := json.Unmarshal([]byte(event.Data), &queryMetrics); err == nil {
				haveMetrics = true
			}
		case "error":
			var apiErr llm.ErrorResponse
			if json.Unmarshal([]byte(event.Data), &apiErr) == nil && apiErr.Error != "" {
				return fullAnswer.String(), fmt.Errorf("%s", apiErr.Error)
			}
			return fullAnswer.String(), fmt.Errorf("stream error: %s", event.Data)
		}
	}

	fmt.Println()

	if len(meta.Sources) > 0 {
		parts := make([]string, 0, len(meta.Sources))
		for _, source := range meta.Sources {
			parts = append(parts, fmt.Sprintf("%s (chunk %d, %.2f)", source.Filename, source.ChunkIndex, source.SimilarityScore))
		}
		line := "sources: " + strings.Join(parts, " · ")
		if haveMetrics {
			line += fmt.Sprintf(" · %.0fms", queryMetrics.TotalLatencyMs)
		}
		fmt.Printf("  %s\n", cliui.DimStyle.Render(line))
	}

	return fullAnswer.String(), nil
}
