package api

import (
	"encoding/json"

	"furrow/internal/jobs"
	"furrow/internal/queue"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:             item.ID,
		Filename:       item.Filename,
		Status:         string(item.Status),
		Attempts:       item.Attempts,
		SizeBytes:      len(item.Payload),
		ErrorMessage:   item.ErrorMessage,
		IdempotencyKey: item.IdempotencyKey,
	}
	if !item.EnqueuedAt.IsZero() {
		dto.EnqueuedAt = item.EnqueuedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if raw := item.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromQueueHealth converts queue diagnostics into the API payload.
func FromQueueHealth(health queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:     health.Total,
		Pending:   health.Pending,
		Uploading: health.Uploading,
		Failed:    health.Failed,
	}
}

// FromJobState converts a tracker snapshot into the API payload.
func FromJobState(state jobs.State) JobState {
	dto := JobState{
		OrgID:             state.Scope.OrgID,
		Year:              state.Scope.Year,
		Phase:             string(state.Phase),
		Current:           state.Progress.Current,
		Total:             state.Progress.Total,
		Message:           state.Message,
		Cause:             string(state.Cause),
		ConsecutiveErrors: state.ConsecutiveErrors,
		Resumed:           state.Resumed,
		Detached:          state.Detached,
	}
	if !state.UpdatedAt.IsZero() {
		dto.UpdatedAt = state.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobStates converts tracker snapshots into API DTOs.
func FromJobStates(states []jobs.State) []JobState {
	if len(states) == 0 {
		return nil
	}
	out := make([]JobState, 0, len(states))
	for _, state := range states {
		out = append(out, FromJobState(state))
	}
	return out
}
