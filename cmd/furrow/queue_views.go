package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"furrow/internal/api"
)

var statusTitler = cases.Title(language.English)

// statusLabel turns a wire status like "in_progress" into "In Progress".
func statusLabel(status string) string {
	return statusTitler.String(strings.ReplaceAll(status, "_", " "))
}

func formatSize(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	suffixes := []string{"KiB", "MiB", "GiB"}
	suffix := suffixes[0]
	for _, s := range suffixes {
		value /= unit
		suffix = s
		if value < unit {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", value, suffix)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Filename,
			statusLabel(item.Status),
			strconv.Itoa(item.Attempts),
			formatSize(item.SizeBytes),
			item.EnqueuedAt,
			truncate(item.ErrorMessage, 48),
		})
	}
	return rows
}

func buildQueueHealthRows(health api.QueueHealth) [][]string {
	rows := make([][]string, 0, 4)
	add := func(label string, count int) {
		if count > 0 {
			rows = append(rows, []string{label, strconv.Itoa(count)})
		}
	}
	add("Pending", health.Pending)
	add("Uploading", health.Uploading)
	add("Failed", health.Failed)
	rows = append(rows, []string{"Total", strconv.Itoa(health.Total)})
	return rows
}

func printQueueItemDetail(out io.Writer, item api.QueueItem) {
	fmt.Fprintf(out, "ID:          %s\n", item.ID)
	fmt.Fprintf(out, "File:        %s\n", item.Filename)
	fmt.Fprintf(out, "Status:      %s\n", statusLabel(item.Status))
	fmt.Fprintf(out, "Attempts:    %d\n", item.Attempts)
	fmt.Fprintf(out, "Size:        %s\n", formatSize(item.SizeBytes))
	fmt.Fprintf(out, "Idempotency: %s\n", item.IdempotencyKey)
	fmt.Fprintf(out, "Enqueued:    %s\n", item.EnqueuedAt)
	fmt.Fprintf(out, "Updated:     %s\n", item.UpdatedAt)
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", item.ErrorMessage)
	}
	if len(item.Metadata) > 0 {
		fmt.Fprintf(out, "Metadata:    %s\n", string(item.Metadata))
	}
}
