package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"furrow/internal/ipc"
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
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

func renderDaemonStatus(out io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runKind := statusError
	runMsg := "not running"
	if status.Running {
		runKind = statusOK
		runMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Process", runKind, runMsg, colorize))

	netKind := statusWarn
	netMsg := "offline; uploads deferred"
	if status.Online {
		netKind = statusOK
		netMsg = "online"
	}
	fmt.Fprintln(out, renderStatusLine("Connectivity", netKind, netMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Queue DB", statusInfo, status.QueueDBPath, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Queue.Total == 0 {
		fmt.Fprintln(out, statusIndent+"Queue is empty")
	} else {
		fmt.Fprintln(out, renderTable(
			[]string{"Status", "Count"},
			buildQueueHealthRows(status.Queue),
			[]columnAlignment{alignLeft, alignRight},
		))
	}

	if len(status.Jobs) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Sync Jobs", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Org", "Year", "Phase", "Progress", "Detached", "Message"},
			buildJobRows(status.Jobs),
			[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		))
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
