package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"proctor/internal/store"
	"proctor/internal/violation"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 20

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

func statusColor(status string) string {
	switch store.CandidateStatus(status) {
	case store.StatusSuspended:
		return ansiRed
	case store.StatusInterviewActive, store.StatusInterviewCompleted:
		return ansiGreen
	case store.StatusInterviewPaused:
		return ansiYellow
	default:
		return ansiBlue
	}
}

func severityColor(severity string) string {
	switch violation.Severity(severity) {
	case violation.SeverityCritical:
		return ansiRed
	case violation.SeverityWarning:
		return ansiYellow
	default:
		return ""
	}
}

func renderField(label, value string) string {
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", value)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{paint(line, ansiBlue, colorize), paint(rule, ansiBlue, colorize)}
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
