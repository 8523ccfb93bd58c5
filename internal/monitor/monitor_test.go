package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmbridge/internal/bridge"
	"elmbridge/internal/config"
	"elmbridge/internal/link"
	"elmbridge/web"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	l := link.NewDemo()
	require.NoError(t, l.Connect())
	b := bridge.New(l)
	return New(config.DefaultConfig(), b, web.FS)
}

func TestStatusEndpoint(t *testing.T) {
	m := newTestMonitor(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	m.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var st StatusData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Running, "bridge not started")
	assert.Equal(t, "bridge stopped", st.Info)
}

func TestConfigEndpointRejectsBadJSON(t *testing.T) {
	m := newTestMonitor(t)

	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	m.handleConfig(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketReceivesFrames(t *testing.T) {
	m := newTestMonitor(t)

	srv := httptest.NewServer(http.HandlerFunc(m.handleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// Initial status frame arrives on connect.
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.NotNil(t, frame.Status)
	assert.False(t, frame.Status.Running)

	// An exchange recorded on the tap is streamed out.
	m.Record(bridge.Exchange{
		Client:   "10.0.0.2:40000",
		Command:  "ATZ",
		Response: "ELM327 v1.5\r\r>",
		Duration: 30 * time.Millisecond,
		Stamp:    time.Now(),
	})

	require.NoError(t, conn.ReadJSON(&frame))
	require.NotNil(t, frame.Exchange)
	assert.Equal(t, "ATZ", frame.Exchange.Command)
	assert.Equal(t, int64(30), frame.Exchange.DurationMs)
}
