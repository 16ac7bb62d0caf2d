// Package vmservice is a minimal JSON-RPC 2.0 client for the Dart VM service
// protocol over WebSocket, covering the two profiling queries the correlator
// needs.
package vmservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Harishwarrior/jankkiller/internal/observer"
)

// Client talks to one VM service endpoint. Calls are serialized: the VM
// service answers in order and the correlator issues one request at a time.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// Dial connects to a VM service WebSocket URI (ws://host:port/ws).
func Dial(ctx context.Context, uri string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("vmservice: dial %s: %w", uri, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("vmservice: rpc error %d: %s", e.Code, e.Message)
}

// call issues one request and reads frames until its response arrives,
// skipping unrelated stream notifications.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("vmservice: send %s: %w", method, err)
	}
	for {
		var resp rpcResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("vmservice: read %s response: %w", method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// CPUSamples fetches CPU samples for the given window. A "no samples" result
// comes back as a nil payload, not an error.
func (c *Client) CPUSamples(ctx context.Context, isolateID string, startMicros, extentMicros int64) (json.RawMessage, error) {
	result, err := c.call(ctx, "getCpuSamples", map[string]any{
		"isolateId":        isolateID,
		"timeOriginMicros": startMicros,
		"timeExtentMicros": extentMicros,
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	return result, nil
}

// VMTimeline fetches the full timeline snapshot; there is no windowed query.
func (c *Client) VMTimeline(ctx context.Context) (*observer.TimelineSnapshot, error) {
	result, err := c.call(ctx, "getVMTimeline", map[string]any{})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var snapshot observer.TimelineSnapshot
	if err := json.Unmarshal(result, &snapshot); err != nil {
		return nil, fmt.Errorf("vmservice: decode timeline: %w", err)
	}
	return &snapshot, nil
}
