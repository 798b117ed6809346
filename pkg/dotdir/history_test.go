package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/dotdir"
)

var _ = Describe("dotdir.Manager history", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadHistory", func() {
		It("returns nil when no history file exists", func() {
			state, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid history", func() {
			data := `{"saved_at":"2025-11-03T10:00:00Z","messages":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}]}`
			err := os.WriteFile(filepath.Join(tmpDir, "history.json"), []byte(data), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[0].Role).To(Equal("user"))
			Expect(state.Messages[0].Content).To(Equal("hello"))
			Expect(state.Messages[1].Role).To(Equal("assistant"))
			Expect(state.Messages[1].Content).To(Equal("hi there"))
		})

		It("returns error for invalid JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "history.json"), []byte("not json"), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadHistory(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})

	Describe("SaveHistory", func() {
		It("persists history to disk and stamps the save time", func() {
			state := &dotdir.HistoryState{
				Messages: []dotdir.HistoryMessage{
					{Role: "user", Content: "what is in my library?"},
					{Role: "assistant", Content: "Three documents on Go."},
				},
			}

			err := m.SaveHistory(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = os.Stat(filepath.Join(tmpDir, "history.json"))
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Messages).To(HaveLen(2))
			Expect(loaded.SavedAt).To(BeTemporally("~", time.Now(), time.Minute))
		})

		It("returns error for nil state", func() {
			err := m.SaveHistory(nil, tmpDir)
			Expect(err).To(HaveOccurred())
		})

		It("overwrites existing history", func() {
			first := &dotdir.HistoryState{
				Messages: []dotdir.HistoryMessage{{Role: "user", Content: "first message"}},
			}
			second := &dotdir.HistoryState{
				Messages: []dotdir.HistoryMessage{{Role: "user", Content: "second message"}},
			}

			err := m.SaveHistory(first, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.SaveHistory(second, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Messages).To(HaveLen(1))
			Expect(loaded.Messages[0].Content).To(Equal("second message"))
		})
	})

	Describe("ClearHistory", func() {
		It("removes the history file", func() {
			state := &dotdir.HistoryState{Messages: []dotdir.HistoryMessage{}}
			err := m.SaveHistory(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = m.ClearHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when no history file exists", func() {
			err := m.ClearHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("round-trip", func() {
		It("saves and loads conversation turns in order", func() {
			state := &dotdir.HistoryState{
				Messages: []dotdir.HistoryMessage{
					{Role: "user", Content: "Hello!"},
					{Role: "assistant", Content: "Hi! How can I help?"},
					{Role: "user", Content: "Summarize the uploaded report."},
					{Role: "assistant", Content: "The report covers quarterly revenue."},
				},
			}

			err := m.SaveHistory(state, tmpDir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := m.LoadHistory(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Messages).To(Equal(state.Messages))
		})
	})
})
