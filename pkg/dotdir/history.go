package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	historyFile = "history.json"
)

// HistoryState is the persisted chat history. folio chat loads it on start
// so a conversation can be resumed across sessions, and saves it on exit.
type HistoryState struct {
	// SavedAt is when the history was last written.
	SavedAt time.Time `json:"saved_at"`

	// Messages is the conversation in chronological order, oldest first.
	Messages []HistoryMessage `json:"messages"`
}

// HistoryMessage is a single turn in the saved conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LoadHistory loads the chat history from a target .folio/history.json.
// Returns nil, nil if no history exists (fresh conversation).
// If overrideDir is non-empty, it is used instead of the default .folio/ location.
func (m *Manager) LoadHistory(overrideDir string) (*HistoryState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, nil
	}

	path := filepath.Join(dir, historyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chat history: %w", err)
	}

	state := &HistoryState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing chat history: %w", err)
	}

	return state, nil
}

// SaveHistory persists the chat history to a target .folio/history.json.
func (m *Manager) SaveHistory(state *HistoryState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil chat history")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	state.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat history: %w", err)
	}

	path := filepath.Join(dir, historyFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing chat history: %w", err)
	}

	return nil
}

// ClearHistory removes the chat history file so the next chat session starts
// a fresh conversation.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearHistory(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return nil
	}

	path := filepath.Join(dir, historyFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing chat history: %w", err)
	}

	return nil
}
