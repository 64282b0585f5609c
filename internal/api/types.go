package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format. The
// recording payload itself never crosses the IPC boundary; SizeBytes stands
// in for it.
type QueueItem struct {
	ID             string          `json:"id"`
	Filename       string          `json:"filename"`
	Status         string          `json:"status"`
	Attempts       int             `json:"attempts"`
	SizeBytes      int             `json:"sizeBytes"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	EnqueuedAt     string          `json:"enqueuedAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// QueueHealth aggregates queue counts per lifecycle state.
type QueueHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Failed    int `json:"failed"`
}

// JobState describes one tracked sync job for API consumers.
type JobState struct {
	OrgID             int64  `json:"orgId"`
	Year              int    `json:"year"`
	Phase             string `json:"phase"`
	Current           int    `json:"current"`
	Total             int    `json:"total"`
	Message           string `json:"message,omitempty"`
	Cause             string `json:"cause,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors"`
	Resumed           bool   `json:"resumed"`
	Detached          bool   `json:"detached"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	Online       bool        `json:"online"`
	QueueDBPath  string      `json:"queueDbPath"`
	LockFilePath string      `json:"lockFilePath"`
	Queue        QueueHealth `json:"queue"`
	Jobs         []JobState  `json:"jobs"`
}
