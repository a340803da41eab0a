package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "Telephony"

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

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Start restarts the bridge loop.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop stops the bridge loop.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events returns journaled events after the cursor.
func (c *Client) Events(after int64, limit int) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", EventsRequest{After: after, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Watch registers a journaled watch.
func (c *Client) Watch(slot int, event string) (*WatchResponse, error) {
	var resp WatchResponse
	if err := c.call("Watch", WatchRequest{Slot: slot, Event: event}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unwatch removes a watch.
func (c *Client) Unwatch(id int) (*UnwatchResponse, error) {
	var resp UnwatchResponse
	if err := c.call("Unwatch", UnwatchRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh re-resolves slot channels and re-queries registration.
func (c *Client) Refresh() (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.call("Refresh", RefreshRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Query runs one network operation through the daemon.
func (c *Client) Query(req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.call("Query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
