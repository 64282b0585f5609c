package ipc

import "furrow/internal/api"

// QueueItem mirrors the API queue DTO for IPC callers.
type QueueItem = api.QueueItem

// JobState mirrors the API job DTO for IPC callers.
type JobState = api.JobState

// StartRequest starts daemon background processing.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon background processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries combined daemon status information.
type StatusResponse struct {
	Running     bool            `json:"running"`
	PID         int             `json:"pid"`
	Online      bool            `json:"online"`
	QueueDBPath string          `json:"queue_db_path"`
	LockPath    string          `json:"lock_path"`
	Queue       api.QueueHealth `json:"queue"`
	Jobs        []JobState      `json:"jobs"`
}

// QueueAddRequest enqueues a recording by path. The daemon reads the file
// itself so payload bytes never cross the socket.
type QueueAddRequest struct {
	SourcePath   string `json:"source_path"`
	MetadataJSON string `json:"metadata_json"`
}

// QueueAddResponse returns the enqueued item.
type QueueAddResponse struct {
	Item QueueItem `json:"item"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueRemoveRequest removes a specific item by ID.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse acknowledges the removal.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearFailedRequest removes failed items.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest requeues failed items and triggers a drain cycle.
type QueueRetryRequest struct{}

// QueueRetryResponse acknowledges the retry request.
type QueueRetryResponse struct {
	Scheduled bool `json:"scheduled"`
}

// QueueHealthRequest fetches aggregate queue diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue counts per lifecycle state.
type QueueHealthResponse struct {
	Health api.QueueHealth `json:"health"`
}

// JobScope identifies one sync job on the wire.
type JobScope struct {
	OrgID int64 `json:"org_id"`
	Year  int   `json:"year"`
}

// JobAttachRequest starts or resumes tracking a scope's sync job.
type JobAttachRequest struct {
	Scope JobScope `json:"scope"`
}

// JobAttachResponse returns the tracked state after attachment.
type JobAttachResponse struct {
	State JobState `json:"state"`
}

// JobTriggerRequest asks the server to start a sync job.
type JobTriggerRequest struct {
	Scope JobScope `json:"scope"`
}

// JobTriggerResponse returns the tracked state after the trigger.
type JobTriggerResponse struct {
	State JobState `json:"state"`
}

// JobCancelRequest cancels a scope's sync job.
type JobCancelRequest struct {
	Scope JobScope `json:"scope"`
}

// JobCancelResponse returns the tracked state after cancellation.
type JobCancelResponse struct {
	State JobState `json:"state"`
}

// JobDetachRequest detaches from a scope without stopping its tracking.
type JobDetachRequest struct {
	Scope JobScope `json:"scope"`
}

// JobDetachResponse acknowledges the detach.
type JobDetachResponse struct {
	Detached bool `json:"detached"`
}

// JobListRequest lists every tracked scope.
type JobListRequest struct{}

// JobListResponse contains tracked job states.
type JobListResponse struct {
	Jobs []JobState `json:"jobs"`
}

// LogTailRequest fetches daemon log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
