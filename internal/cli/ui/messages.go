package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a structured problem report.
type Message struct {
	Level        Level
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// Format renders m.
//
//	x SLOT NOT FOUND: Cannot find slot 'left-panl'.
//
//	   Did you mean: left-panel?
//
//	   > See all slots: slotkit slots
func (m Message) Format() string {
	var b strings.Builder

	var head *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		head, symbol = color.New(color.FgYellow, color.Bold), "!"
	case LevelInfo:
		head, symbol = color.New(color.FgCyan, color.Bold), "i"
	default:
		head, symbol = color.New(color.FgRed, color.Bold), "x"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		head.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}
	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, c := range m.HelpCommands {
			cyan.Fprintf(&b, "   > %s\n", c)
		}
	}
	return b.String()
}

// Write writes the formatted message to w.
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success formats a success line.
func Success(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("ok %s", message)
}

// SlotNotFound reports an unknown slot with close matches among known.
func SlotNotFound(slot string, known []string, noColor bool) Message {
	return Message{
		Level:        LevelError,
		Context:      "slot not found",
		Problem:      fmt.Sprintf("Cannot find slot '%s'.", slot),
		Suggestions:  FindSimilar(slot, known, nil),
		HelpCommands: []string{"See all slots: slotkit slots"},
		NoColor:      noColor,
	}
}

// Failure reports a command error.
func Failure(err error, noColor bool) Message {
	return Message{Level: LevelError, Problem: err.Error(), NoColor: noColor}
}
