package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Furrow.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Furrow.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Furrow.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues a recording file for upload.
func (c *Client) QueueAdd(sourcePath, metadataJSON string) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	req := QueueAddRequest{SourcePath: sourcePath, MetadataJSON: metadataJSON}
	if err := c.client.Call("Furrow.QueueAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Furrow.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single queue item.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Furrow.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes a single queue item.
func (c *Client) QueueRemove(id string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	req := QueueRemoveRequest{ID: id}
	if err := c.client.Call("Furrow.QueueRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearFailed removes failed items from the queue.
func (c *Client) QueueClearFailed() (*QueueClearFailedResponse, error) {
	var resp QueueClearFailedResponse
	if err := c.client.Call("Furrow.QueueClearFailed", QueueClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry requeues failed items and schedules a drain cycle.
func (c *Client) QueueRetry() (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.client.Call("Furrow.QueueRetry", QueueRetryRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns queue diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Furrow.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobAttach starts or resumes tracking a scope's sync job.
func (c *Client) JobAttach(scope JobScope) (*JobAttachResponse, error) {
	var resp JobAttachResponse
	if err := c.client.Call("Furrow.JobAttach", JobAttachRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobTrigger asks the server to start a sync job for the scope.
func (c *Client) JobTrigger(scope JobScope) (*JobTriggerResponse, error) {
	var resp JobTriggerResponse
	if err := c.client.Call("Furrow.JobTrigger", JobTriggerRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCancel cancels a scope's sync job.
func (c *Client) JobCancel(scope JobScope) (*JobCancelResponse, error) {
	var resp JobCancelResponse
	if err := c.client.Call("Furrow.JobCancel", JobCancelRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDetach detaches from a scope without stopping its tracking.
func (c *Client) JobDetach(scope JobScope) (*JobDetachResponse, error) {
	var resp JobDetachResponse
	if err := c.client.Call("Furrow.JobDetach", JobDetachRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList lists every tracked scope.
func (c *Client) JobList() (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Furrow.JobList", JobListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns daemon log lines starting at the requested offset.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Furrow.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Furrow.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
