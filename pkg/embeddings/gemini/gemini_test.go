package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings/gemini"
	"github.com/papercomputeco/folio/pkg/vector"
)

func TestGemini(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gemini Embedder Suite")
}

// capturedCall records what one embedContent request carried.
type capturedCall struct {
	taskType string
	text     string
	apiKey   string
}

var _ = Describe("Embedder", func() {
	var (
		mu    sync.Mutex
		calls []capturedCall
	)

	// capture runs on the server goroutine, so it records without asserting.
	capture := func(r *http.Request) {
		var body struct {
			TaskType string `json:"taskType"`
			Content  struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		call := capturedCall{
			taskType: body.TaskType,
			apiKey:   r.Header.Get("x-goog-api-key"),
		}
		if len(body.Content.Parts) > 0 {
			call.text = body.Content.Parts[0].Text
		}

		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
	}

	recorded := func() []capturedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedCall(nil), calls...)
	}

	BeforeEach(func() {
		calls = nil
	})

	Describe("NewEmbedder", func() {
		It("should require an API key", func() {
			_, err := gemini.NewEmbedder(gemini.EmbedderConfig{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("api key is required"))
		})

		It("should prefix bare model names with models/", func() {
			var path string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				path = r.URL.Path
				mu.Unlock()
				json.NewEncoder(w).Encode(map[string]any{
					"embedding": map[string]any{"values": []float32{0.1}},
				})
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL: server.URL,
				Model:   "embedding-001",
				APIKey:  "test-key",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = embedder.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			requested := path
			mu.Unlock()
			Expect(requested).To(ContainSubstring("/models/embedding-001:embedContent"))
		})
	})

	Describe("Embed", func() {
		It("should send the query task type with the API key header", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capture(r)
				json.NewEncoder(w).Encode(map[string]any{
					"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
				})
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "test-key",
			})
			Expect(err).NotTo(HaveOccurred())

			embedding, err := embedder.Embed(context.Background(), "what is folio")
			Expect(err).NotTo(HaveOccurred())
			Expect(embedding).To(Equal([]float32{0.1, 0.2, 0.3}))

			captured := recorded()
			Expect(captured).To(HaveLen(1))
			Expect(captured[0].taskType).To(Equal("RETRIEVAL_QUERY"))
			Expect(captured[0].text).To(Equal("what is folio"))
			Expect(captured[0].apiKey).To(Equal("test-key"))
		})

		It("should retry rate-limited requests before succeeding", func() {
			var attempts int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				attempts++
				n := attempts
				mu.Unlock()

				if n < 3 {
					http.Error(w, "rate limited", http.StatusTooManyRequests)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"embedding": map[string]any{"values": []float32{0.5}},
				})
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL:    server.URL,
				APIKey:     "test-key",
				MaxRetries: 3,
				RetryDelay: 5 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			embedding, err := embedder.Embed(context.Background(), "retry me")
			Expect(err).NotTo(HaveOccurred())
			Expect(embedding).To(Equal([]float32{0.5}))
		})

		It("should give up after exhausting retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL:    server.URL,
				APIKey:     "test-key",
				MaxRetries: 2,
				RetryDelay: 5 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = embedder.Embed(context.Background(), "doomed")
			Expect(err).To(MatchError(vector.ErrEmbedding))
			Expect(err.Error()).To(ContainSubstring("503"))
		})

		It("should not retry client errors", func() {
			var attempts int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				attempts++
				mu.Unlock()
				http.Error(w, "bad request", http.StatusBadRequest)
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL:    server.URL,
				APIKey:     "test-key",
				RetryDelay: 5 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = embedder.Embed(context.Background(), "rejected")
			Expect(err).To(MatchError(vector.ErrEmbedding))

			mu.Lock()
			n := attempts
			mu.Unlock()
			Expect(n).To(Equal(1))
		})
	})

	Describe("EmbedBatch", func() {
		It("should send the document task type for every text in order", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capture(r)
				json.NewEncoder(w).Encode(map[string]any{
					"embedding": map[string]any{"values": []float32{0.1, 0.2}},
				})
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "test-key",
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := embedder.EmbedBatch(context.Background(), []string{"first", "second", "third"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))

			captured := recorded()
			Expect(captured).To(HaveLen(3))
			for i, text := range []string{"first", "second", "third"} {
				Expect(captured[i].taskType).To(Equal("RETRIEVAL_DOCUMENT"))
				Expect(captured[i].text).To(Equal(text))
			}
		})

		It("should fail the whole batch at the first failing index", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Content struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"content"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)

				if len(body.Content.Parts) > 0 && body.Content.Parts[0].Text == "poison" {
					http.Error(w, "bad request", http.StatusBadRequest)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"embedding": map[string]any{"values": []float32{0.1}},
				})
			}))
			defer server.Close()

			embedder, err := gemini.NewEmbedder(gemini.EmbedderConfig{
				BaseURL:    server.URL,
				APIKey:     "test-key",
				RetryDelay: 5 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = embedder.EmbedBatch(context.Background(), []string{"fine", "poison", "never reached"})
			Expect(err).To(MatchError(vector.ErrEmbedding))
			Expect(err.Error()).To(ContainSubstring("batch embedding failed at index 1"))
		})
	})
})
