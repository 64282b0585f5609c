package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a queued recording.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Item represents a captured recording persisted in SQLite.
type Item struct {
	ID             string
	Filename       string
	Payload        []byte
	MetadataJSON   string
	IdempotencyKey string
	Status         Status
	Attempts       int
	ErrorMessage   string
	EnqueuedAt     time.Time
	UpdatedAt      time.Time
}

// NewItem builds a pending item with a fresh ID and idempotency key.
// The idempotency key lets the backend deduplicate a retried upload after
// a false-negative network failure.
func NewItem(filename string, payload []byte, metadataJSON string) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:             uuid.NewString(),
		Filename:       filename,
		Payload:        payload,
		MetadataJSON:   metadataJSON,
		IdempotencyKey: uuid.NewString(),
		Status:         StatusPending,
		EnqueuedAt:     now,
		UpdatedAt:      now,
	}
}

// SetFailed parks the item for manual intervention with the given message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Uploading int
	Failed    int
}
