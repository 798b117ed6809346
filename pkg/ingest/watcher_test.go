package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
)

var _ = Describe("Watcher", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		dir    string
		store  *inmemory.Driver
		pool   *ingest.Pool
		done   chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		dir = GinkgoT().TempDir()
		store = inmemory.NewDriver()

		ch, err := chunker.New(512, 50)
		Expect(err).NotTo(HaveOccurred())

		ingestor, err := ingest.NewIngestor(&ingest.Config{
			Docstore:  store,
			Vector:    testutils.NewMockVectorDriver(),
			Embedder:  testutils.NewMockEmbedder(),
			Chunker:   ch,
			Publisher: testutils.NewMockPublisher(),
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		pool, err = ingest.NewPool(&ingest.PoolConfig{
			Ingestor: ingestor,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		watcher, err := ingest.NewWatcher(&ingest.WatcherConfig{
			Dir:      dir,
			Pool:     pool,
			Docstore: store,
			Debounce: 50 * time.Millisecond,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		done = make(chan error, 1)
		go func() {
			done <- watcher.Run(ctx)
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		pool.Close()
	})

	It("ingests files dropped into the directory", func() {
		path := filepath.Join(dir, "notes.txt")
		Expect(os.WriteFile(path, []byte(sampleText), 0o644)).To(Succeed())

		Eventually(func() int {
			count, _ := store.Count(ctx)
			return count
		}, 3*time.Second).Should(Equal(1))

		Eventually(func() docstore.Status {
			docs, err := store.List(ctx)
			if err != nil || len(docs) != 1 {
				return ""
			}
			return docs[0].Status
		}, 3*time.Second).Should(Equal(docstore.StatusCompleted))

		docs, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs[0].Filename).To(Equal("notes.txt"))
		Expect(docs[0].FilePath).To(Equal(path))
	})

	It("coalesces bursts of writes into one ingestion", func() {
		path := filepath.Join(dir, "burst.txt")
		for i := 0; i < 5; i++ {
			Expect(os.WriteFile(path, []byte(sampleText), 0o644)).To(Succeed())
			time.Sleep(5 * time.Millisecond)
		}

		Eventually(func() int {
			count, _ := store.Count(ctx)
			return count
		}, 3*time.Second).Should(Equal(1))

		Consistently(func() int {
			count, _ := store.Count(ctx)
			return count
		}, 300*time.Millisecond).Should(Equal(1))
	})

	It("ignores unsupported extensions", func() {
		Expect(os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "blob.dat"), []byte("x"), 0o644)).To(Succeed())

		Consistently(func() int {
			count, _ := store.Count(ctx)
			return count
		}, 300*time.Millisecond).Should(BeZero())
	})

	It("requires a directory, pool, docstore, and logger", func() {
		_, err := ingest.NewWatcher(&ingest.WatcherConfig{Pool: pool, Docstore: store, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("directory")))

		_, err = ingest.NewWatcher(&ingest.WatcherConfig{Dir: dir, Docstore: store, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("pool")))

		_, err = ingest.NewWatcher(&ingest.WatcherConfig{Dir: dir, Pool: pool, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("document store")))

		_, err = ingest.NewWatcher(&ingest.WatcherConfig{Dir: dir, Pool: pool, Docstore: store})
		Expect(err).To(MatchError(ContainSubstring("logger")))
	})
})
