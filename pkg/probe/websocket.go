package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// readinessMethod is a cheap JSON-RPC query every node answers once its RPC
// server is up.
const readinessMethod = "parameters"

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WebSocketChecker considers a node ready once its JSON-RPC websocket
// completes the handshake and answers a request. An error response still
// proves the RPC server is serving.
type WebSocketChecker struct {
	URL     string
	Method  string
	Timeout time.Duration
}

// NewWebSocketChecker creates a checker for a ws:// or wss:// endpoint
func NewWebSocketChecker(url string) *WebSocketChecker {
	return &WebSocketChecker{
		URL:     url,
		Method:  readinessMethod,
		Timeout: 5 * time.Second,
	}
}

// Check dials, sends one request and waits for one response
func (w *WebSocketChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: w.Timeout}
	conn, resp, err := dialer.DialContext(ctx, w.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return failed(start, "websocket handshake failed: %v", err)
	}
	defer conn.Close()

	// Reads do not observe ctx, so mirror its deadline on the connection
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: w.Method, Params: []interface{}{}}
	if err := conn.WriteJSON(req); err != nil {
		return failed(start, "failed to send %s request: %v", w.Method, err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return failed(start, "no response to %s: %v", w.Method, err)
	}

	var reply rpcResponse
	if err := json.Unmarshal(data, &reply); err != nil {
		return failed(start, "malformed JSON-RPC response: %v", err)
	}
	if reply.JSONRPC != "2.0" || (reply.Result == nil && reply.Error == nil) {
		return failed(start, "malformed JSON-RPC response: %.64s", string(data))
	}

	message := fmt.Sprintf("JSON-RPC %s answered", w.Method)
	if reply.Error != nil {
		message = fmt.Sprintf("JSON-RPC %s answered with error %d", w.Method, reply.Error.Code)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return Result{
		Healthy:   true,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the check type
func (w *WebSocketChecker) Type() CheckType {
	return CheckTypeWebSocket
}

// Endpoint returns the probed URL
func (w *WebSocketChecker) Endpoint() string {
	return w.URL
}
