package mcp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/api/mcp"
	foliologger "github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

var _ = Describe("MCP Server", func() {
	var (
		server       *mcp.Server
		vectorDriver *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
	)

	BeforeEach(func() {
		logger := foliologger.Nop()
		vectorDriver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		var err error
		server, err = mcp.NewServer(mcp.Config{
			VectorDriver: vectorDriver,
			Embedder:     embedder,
			Generator:    testutils.NewMockGenerator(),
			Logger:       logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when vector driver is nil", func() {
			logger := foliologger.Nop()
			_, err := mcp.NewServer(mcp.Config{
				Embedder: embedder,
				Logger:   logger,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("vector driver is required"))
		})

		It("returns an error when embedder is nil", func() {
			logger := foliologger.Nop()
			_, err := mcp.NewServer(mcp.Config{
				VectorDriver: vectorDriver,
				Logger:       logger,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("embedder is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				VectorDriver: vectorDriver,
				Embedder:     embedder,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("allows a nil generator", func() {
			logger := foliologger.Nop()
			_, err := mcp.NewServer(mcp.Config{
				VectorDriver: vectorDriver,
				Embedder:     embedder,
				Logger:       logger,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("skips collaborator checks for a noop server", func() {
			_, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates a server with valid config", func() {
			Expect(server).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			handler := server.Handler()
			Expect(handler).NotTo(BeNil())
		})
	})
})
