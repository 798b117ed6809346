package librarycmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/vector"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

type libraryView int

const (
	viewDocuments libraryView = iota
	viewChunks
)

type libraryModel struct {
	client      *libraryClient
	documents   []docstore.Document
	chunks      []vector.ChunkRecord
	inspected   *docstore.Document
	view        libraryView
	cursor      int
	chunkCursor int
	width       int
	height      int
	statusIndex int
	confirming  bool
	status      string
	keys        libraryKeyMap
	help        help.Model
}

var (
	libTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	libMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	libDimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	libSectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	libDividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	libHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("82")).Bold(true)
	libIDStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	libOKStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	libFailStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	libWarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	libConfirmStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("203")).Bold(true)
)

// statusFilters are cycled with the filter key; empty means all.
var statusFilters = []string{
	"",
	string(docstore.StatusCompleted),
	string(docstore.StatusProcessing),
	string(docstore.StatusPending),
	string(docstore.StatusFailed),
}

type libraryKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Delete  key.Binding
	Filter  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k libraryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Enter, k.Back, k.Delete, k.Filter, k.Refresh, k.Quit}
}

func (k libraryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Enter, k.Back}, {k.Delete, k.Filter, k.Refresh, k.Quit}}
}

func defaultKeyMap() libraryKeyMap {
	return libraryKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Enter:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "chunks")),
		Back:    key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "back")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type documentsLoadedMsg struct {
	documents []docstore.Document
	err       error
}

type chunksLoadedMsg struct {
	document docstore.Document
	chunks   []vector.ChunkRecord
	err      error
}

type documentDeletedMsg struct {
	filename string
	err      error
}

func runLibraryTUI(ctx context.Context, client *libraryClient, documents []docstore.Document) error {
	model := newLibraryModel(client, documents)

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func newLibraryModel(client *libraryClient, documents []docstore.Document) libraryModel {
	return libraryModel{
		client:    client,
		documents: documents,
		view:      viewDocuments,
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
}

func (m libraryModel) Init() bubbletea.Cmd {
	return nil
}

func (m libraryModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case documentsLoadedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.documents = msg.documents
		if filtered := m.filteredDocuments(); m.cursor >= len(filtered) {
			m.cursor = clamp(m.cursor, len(filtered)-1)
		}
		return m, nil
	case chunksLoadedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.inspected = &msg.document
		m.chunks = msg.chunks
		m.chunkCursor = 0
		m.view = viewChunks
		return m, nil
	case documentDeletedMsg:
		m.confirming = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = "Deleted " + msg.filename
		return m, loadDocumentsCmd(m.client)
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m libraryModel) View() string {
	switch m.view {
	case viewDocuments:
		return m.viewDocuments()
	case viewChunks:
		return m.viewChunks()
	}
	return m.viewDocuments()
}

func (m libraryModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	if m.confirming {
		switch msg.String() {
		case "y":
			m.confirming = false
			filtered := m.filteredDocuments()
			if m.cursor < len(filtered) {
				doc := filtered[m.cursor]
				m.status = "Deleting " + doc.Filename + "..."
				return m, deleteDocumentCmd(m.client, doc)
			}
			return m, nil
		default:
			m.confirming = false
			m.status = ""
			return m, nil
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, bubbletea.Quit
	case "j", "down":
		return m.moveCursor(1)
	case "k", "up":
		return m.moveCursor(-1)
	case "l", "enter":
		if m.view == viewDocuments {
			return m.inspectSelected()
		}
	case "h", "esc":
		if m.view == viewChunks {
			m.view = viewDocuments
			m.inspected = nil
			m.chunks = nil
		}
	case "d":
		if m.view == viewDocuments {
			filtered := m.filteredDocuments()
			if m.cursor < len(filtered) {
				m.confirming = true
				m.status = ""
			}
		}
	case "f":
		if m.view == viewDocuments {
			m.statusIndex = (m.statusIndex + 1) % len(statusFilters)
			m.cursor = 0
		}
	case "r":
		if m.view == viewDocuments {
			m.status = ""
			return m, loadDocumentsCmd(m.client)
		}
		if m.view == viewChunks && m.inspected != nil {
			return m, loadChunksCmd(m.client, *m.inspected)
		}
	}

	return m, nil
}

func (m libraryModel) moveCursor(delta int) (bubbletea.Model, bubbletea.Cmd) {
	if m.view == viewDocuments {
		filtered := m.filteredDocuments()
		if len(filtered) == 0 {
			return m, nil
		}
		m.cursor = clamp(m.cursor+delta, len(filtered)-1)
		return m, nil
	}

	if len(m.chunks) == 0 {
		return m, nil
	}
	m.chunkCursor = clamp(m.chunkCursor+delta, len(m.chunks)-1)
	return m, nil
}

func (m libraryModel) inspectSelected() (bubbletea.Model, bubbletea.Cmd) {
	filtered := m.filteredDocuments()
	if m.cursor >= len(filtered) {
		return m, nil
	}

	doc := filtered[m.cursor]
	if doc.Status != docstore.StatusCompleted {
		m.status = doc.Filename + " has no indexed chunks yet"
		return m, nil
	}
	return m, loadChunksCmd(m.client, doc)
}

func (m libraryModel) filteredDocuments() []docstore.Document {
	status := statusFilters[m.statusIndex]
	if status == "" {
		return m.documents
	}

	filtered := make([]docstore.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		if string(doc.Status) == status {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}

func (m libraryModel) viewDocuments() string {
	filtered := m.filteredDocuments()

	headerLeft := libTitleStyle.Render("folio library")
	headerRight := libMutedStyle.Render(m.headerDocumentCount(len(filtered)))
	lines := make([]string, 0, 12)
	lines = append(lines, renderHeaderLine(m.width, headerLeft, headerRight), renderRule(m.width), "")

	if len(filtered) == 0 {
		if len(m.documents) == 0 {
			lines = append(lines, libMutedStyle.Render("library is empty. Index something with folio ingest <path>."))
		} else {
			lines = append(lines, libMutedStyle.Render("no documents match this status filter."))
		}
		lines = append(lines, "", m.viewStatusLine(), m.viewFooter())
		return strings.Join(lines, "\n")
	}

	lines = append(lines, libMutedStyle.Render("  filename                       type   chunks  uploaded      status"))

	listHeight := m.listHeight(len(lines))
	start, end := visibleRange(len(filtered), m.cursor, listHeight)
	for i := start; i < end; i++ {
		doc := filtered[i]
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}

		line := fmt.Sprintf("%s %-30s %-6s %6d  %-12s  %s",
			cursor,
			truncateText(doc.Filename, 30),
			strings.TrimPrefix(doc.FileType, "."),
			doc.ChunkCount,
			formatUploaded(doc.UploadedAt),
			statusStyleFor(doc.Status).Render(string(doc.Status)),
		)

		if i == m.cursor {
			line = libHighlightStyle.Render(line)
		}
		lines = append(lines, line)
	}

	if end < len(filtered) {
		lines = append(lines, libMutedStyle.Render(fmt.Sprintf("  ... %d more", len(filtered)-end)))
	}

	lines = append(lines, "", m.viewStatusLine(), m.viewFooter())
	return strings.Join(lines, "\n")
}

func (m libraryModel) viewChunks() string {
	if m.inspected == nil {
		return libMutedStyle.Render("no document selected")
	}

	doc := m.inspected
	headerLeft := libTitleStyle.Render("folio library › " + doc.Filename)
	headerRight := libMutedStyle.Render(fmt.Sprintf("%s · %d chunks", doc.DocumentID, len(m.chunks)))
	lines := make([]string, 0, 20)
	lines = append(lines, renderHeaderLine(m.width, headerLeft, headerRight), renderRule(m.width), "")

	if len(m.chunks) == 0 {
		lines = append(lines, libMutedStyle.Render("no chunks indexed for this document."))
		lines = append(lines, "", m.viewFooter())
		return strings.Join(lines, "\n")
	}

	lines = append(lines, libSectionStyle.Render("chunks"), renderRule(m.width))

	listHeight := max(m.listHeight(len(lines))/2, 4)
	start, end := visibleRange(len(m.chunks), m.chunkCursor, listHeight)
	for i := start; i < end; i++ {
		chunk := m.chunks[i]
		cursor := " "
		if i == m.chunkCursor {
			cursor = ">"
		}

		preview := strings.ReplaceAll(chunk.Content, "\n", " ")
		line := fmt.Sprintf("%s #%-3d %s  %s",
			cursor,
			chunk.ChunkIndex,
			libIDStyle.Render(fmt.Sprintf("[%d:%d]", chunk.StartChar, chunk.EndChar)),
			truncateText(preview, max(m.lineWidth()-20, 20)),
		)

		if i == m.chunkCursor {
			line = libHighlightStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", libSectionStyle.Render("content"), renderRule(m.width))

	selected := m.chunks[m.chunkCursor]
	detailHeight := max(m.height-len(lines)-3, 4)
	wrapped := wrapText(selected.Content, m.lineWidth())
	if len(wrapped) > detailHeight {
		wrapped = wrapped[:detailHeight]
		wrapped = append(wrapped, libMutedStyle.Render("..."))
	}
	lines = append(lines, wrapped...)

	lines = append(lines, "", m.viewFooter())
	return strings.Join(lines, "\n")
}

func (m libraryModel) viewStatusLine() string {
	if m.confirming {
		filtered := m.filteredDocuments()
		if m.cursor < len(filtered) {
			return libConfirmStyle.Render(fmt.Sprintf(" Delete %s and its chunks? (y/n) ", filtered[m.cursor].Filename))
		}
	}
	if m.status != "" {
		return libMutedStyle.Render(m.status)
	}
	return ""
}

func (m libraryModel) viewFooter() string {
	return libMutedStyle.Render(m.help.View(m.keys))
}

func (m libraryModel) headerDocumentCount(visible int) string {
	status := statusFilters[m.statusIndex]
	if status == "" {
		return fmt.Sprintf("%d documents", len(m.documents))
	}
	return fmt.Sprintf("%d of %d documents (%s)", visible, len(m.documents), status)
}

// listHeight is the number of rows available for a scrolling list after the
// chrome already emitted plus the footer.
func (m libraryModel) listHeight(used int) int {
	screenHeight := m.height
	if screenHeight <= 0 {
		screenHeight = 40
	}
	return max(screenHeight-used-4, 5)
}

func (m libraryModel) lineWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func loadDocumentsCmd(client *libraryClient) bubbletea.Cmd {
	return func() bubbletea.Msg {
		documents, err := client.listDocuments(context.Background())
		return documentsLoadedMsg{documents: documents, err: err}
	}
}

func loadChunksCmd(client *libraryClient, doc docstore.Document) bubbletea.Cmd {
	return func() bubbletea.Msg {
		chunks, err := client.documentChunks(context.Background(), doc.DocumentID)
		return chunksLoadedMsg{document: doc, chunks: chunks, err: err}
	}
}

func deleteDocumentCmd(client *libraryClient, doc docstore.Document) bubbletea.Cmd {
	return func() bubbletea.Msg {
		err := client.deleteDocument(context.Background(), doc.DocumentID)
		return documentDeletedMsg{filename: doc.Filename, err: err}
	}
}

func statusStyleFor(status docstore.Status) lipgloss.Style {
	switch status {
	case docstore.StatusCompleted:
		return libOKStyle
	case docstore.StatusFailed:
		return libFailStyle
	default:
		return libWarnStyle
	}
}

func formatUploaded(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	case age < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

func clamp(value, upper int) int {
	if value < 0 {
		return 0
	}
	if value > upper {
		return upper
	}
	return value
}

// truncateText cuts on display width so wide runes and escape
// sequences in chunk previews don't misalign the table.
func truncateText(value string, limit int) string {
	if ansi.StringWidth(value) <= limit {
		return value
	}
	if limit <= 3 {
		return ansi.Truncate(value, limit, "")
	}
	return ansi.Truncate(value, limit, "...")
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	spacing := lineWidth - leftWidth - rightWidth
	return left + strings.Repeat(" ", spacing) + right
}

func renderRule(width int) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	return libDividerStyle.Render(strings.Repeat("─", lineWidth))
}

func visibleRange(total, cursor, size int) (int, int) {
	if total <= 0 || size <= 0 {
		return 0, 0
	}
	if total <= size {
		return 0, total
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	start := max(cursor-(size/2), 0)
	end := start + size
	if end > total {
		end = total
		start = max(end-size, 0)
	}
	return start, end
}

// wrapText greedily wraps text to the given width, preserving paragraph
// breaks.
func wrapText(text string, width int) []string {
	if width < 10 {
		width = 10
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) > width {
				lines = append(lines, current)
				current = word
				continue
			}
			current += " " + word
		}
		lines = append(lines, current)
	}

	return lines
}
