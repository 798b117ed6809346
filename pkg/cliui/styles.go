package cliui

import "github.com/charmbracelet/lipgloss"

// Shared style set for command output. Commands keep truly one-off styles
// local; anything rendered by more than one command lives here.
var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	// HeaderStyle renders section headers like "Indexed documents".
	HeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)

	// KeyStyle and ValueStyle render aligned key/value output in
	// status and config commands.
	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// NameStyle highlights the subject of a line: a filename, a model
	// name, a count.
	NameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)

	// HashStyle renders document and chunk identifiers.
	HashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	// RoleStyle and PreviewStyle render retrieved-chunk listings.
	RoleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	PreviewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	DimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)
