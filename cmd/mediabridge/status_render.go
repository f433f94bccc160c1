package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const statusLabelWidth = 18

// renderStatusLine formats one "label  state  detail" row. Only the state
// token is colorized so the detail stays readable on any terminal theme.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	token := statusToken(kind)
	if colorize {
		token = statusColor(kind) + token + ansiReset
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label, token)
	if message != "" {
		line += "  " + message
	}
	return line
}

func statusToken(kind statusKind) string {
	switch kind {
	case statusOK:
		return "ok   "
	case statusWarn:
		return "warn "
	case statusError:
		return "error"
	default:
		return "info "
	}
}

func statusColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiCyan
	}
}

// renderSectionHeader returns the lines introducing a titled output section.
func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		title = ansiCyan + title + ansiReset
		rule = ansiCyan + rule + ansiReset
	}
	return []string{title, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
