package stdlib

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rill/internal/fault"
	"rill/internal/value"
)

func TestHttpGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	res := mustCall(t, "http_get", srv.URL).(value.Map)
	status, _ := res.Get("status")
	body, _ := res.Get("body")
	headers, _ := res.Get("headers")
	assert.Equal(t, float64(418), status)
	assert.Equal(t, "short and stout", body)
	hv, ok := headers.(value.Map).Get("X-Test")
	require.True(t, ok)
	assert.Equal(t, "yes", hv)
}

func TestHttpPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		io.WriteString(w, r.Header.Get("Content-Type")+"|"+string(body))
	}))
	defer srv.Close()

	res := mustCall(t, "http_post", srv.URL, "text/plain", "payload").(value.Map)
	body, _ := res.Get("body")
	assert.Equal(t, "text/plain|payload", body)
}

func TestHttpGetConnectionError(t *testing.T) {
	f := callFault(t, "http_get", "http://127.0.0.1:1/nothing-listens-here")
	assert.Contains(t, f.Message, "http_get")
}

func TestWebSocketEcho(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	id := mustCall(t, "ws_connect", url).(string)

	mustCall(t, "ws_send", id, "ping")
	assert.Equal(t, "ping", mustCall(t, "ws_recv", id))

	mustCall(t, "ws_close", id)
	f := callFault(t, "ws_send", id, "late")
	assert.Equal(t, fault.ReferenceFault, f.Kind)
}

func TestWsUnknownConnection(t *testing.T) {
	f := callFault(t, "ws_recv", "ws-999")
	assert.Equal(t, fault.ReferenceFault, f.Kind)
	assert.Equal(t, `ws_recv: no connection "ws-999"`, f.Message)
}
