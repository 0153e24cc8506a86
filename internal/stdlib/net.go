// internal/stdlib/net.go
//
// HTTP and WebSocket builtins. Synchronous by design, like every blocking
// stdlib call visible to the core.
package stdlib

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"rill/internal/fault"
	"rill/internal/value"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

type wsManager struct {
	mu    sync.Mutex
	next  int
	conns map[string]*websocket.Conn
}

var sockets = &wsManager{conns: map[string]*websocket.Conn{}}

func init() {
	Register("http_get", 1, httpGet)
	Register("http_post", 3, httpPost)
	Register("ws_connect", 1, wsConnect)
	Register("ws_send", 2, wsSend)
	Register("ws_recv", 1, wsRecv)
	Register("ws_close", 1, wsClose)
}

func httpResult(resp *http.Response) (value.Value, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "reading response body"))
	}
	headers := make(map[string]value.Value, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return value.NewMap(map[string]value.Value{
		"status":  float64(resp.StatusCode),
		"body":    string(body),
		"headers": value.NewMap(headers),
	}), nil
}

// http_get(url) -> {status, body, headers}
func httpGet(args []value.Value) (value.Value, error) {
	url, ok := args[0].(string)
	if !ok {
		return nil, typeFault("http_get", "string", args[0])
	}
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "http_get"))
	}
	return httpResult(resp)
}

// http_post(url, contentType, body) -> {status, body, headers}
func httpPost(args []value.Value) (value.Value, error) {
	url, ok1 := args[0].(string)
	ctype, ok2 := args[1].(string)
	body, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, fault.New(fault.TypeFault, "http_post: url, content type and body must be strings")
	}
	resp, err := httpClient.Post(url, ctype, strings.NewReader(body))
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "http_post"))
	}
	return httpResult(resp)
}

// ws_connect(url) -> connection id
func wsConnect(args []value.Value) (value.Value, error) {
	url, ok := args[0].(string)
	if !ok {
		return nil, typeFault("ws_connect", "string", args[0])
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "ws_connect"))
	}
	sockets.mu.Lock()
	sockets.next++
	id := "ws-" + value.FormatNumber(float64(sockets.next))
	sockets.conns[id] = conn
	sockets.mu.Unlock()
	return id, nil
}

func lookupWS(name string, arg value.Value) (*websocket.Conn, string, error) {
	id, ok := arg.(string)
	if !ok {
		return nil, "", typeFault(name, "string", arg)
	}
	sockets.mu.Lock()
	conn, found := sockets.conns[id]
	sockets.mu.Unlock()
	if !found {
		return nil, "", fault.New(fault.ReferenceFault, "%s: no connection %q", name, id)
	}
	return conn, id, nil
}

func wsSend(args []value.Value) (value.Value, error) {
	conn, _, err := lookupWS("ws_send", args[0])
	if err != nil {
		return nil, err
	}
	msg, ok := args[1].(string)
	if !ok {
		return nil, typeFault("ws_send", "string", args[1])
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return nil, fault.Of(errors.Wrap(err, "ws_send"))
	}
	return nil, nil
}

func wsRecv(args []value.Value) (value.Value, error) {
	conn, _, err := lookupWS("ws_recv", args[0])
	if err != nil {
		return nil, err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fault.Of(errors.Wrap(err, "ws_recv"))
	}
	return string(msg), nil
}

func wsClose(args []value.Value) (value.Value, error) {
	conn, id, err := lookupWS("ws_close", args[0])
	if err != nil {
		return nil, err
	}
	sockets.mu.Lock()
	delete(sockets.conns, id)
	sockets.mu.Unlock()
	return nil, conn.Close()
}
