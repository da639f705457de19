package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rfdetect/pkg/config"
	"github.com/dougsko/rfdetect/pkg/display"
	"github.com/dougsko/rfdetect/pkg/protocol"
)

func startDaemon(t *testing.T) (*Daemon, *httptest.Server) {
	t.Helper()
	dir, err := os.MkdirTemp("", "rfd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := config.Default()
	cfg.Web.Enabled = false
	cfg.Battery.Enabled = false
	cfg.Storage.DatabasePath = filepath.Join(dir, "test.db")
	cfg.API.UnixSocket = filepath.Join(dir, "s.sock")
	cfg.Display.SplashMs = 1
	cfg.Display.RefreshMs = 10
	cfg.Scan.IntervalMs = 3600000

	d, err := NewDaemon(cfg, true)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { d.Stop() })

	srv := httptest.NewServer(d.router())
	t.Cleanup(srv.Close)

	require.Eventually(t, func() bool {
		s, err := d.socketClient.GetStatus()
		return err == nil && s.State == "scanning"
	}, 2*time.Second, 10*time.Millisecond)
	return d, srv
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStatusAPI(t *testing.T) {
	_, srv := startDaemon(t)

	var status protocol.Status
	assert.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/v1/status", nil, &status))
	assert.Equal(t, "scanning", status.State)
	assert.Equal(t, "menu", status.Screen)
	assert.True(t, status.Simulated)
}

func TestThresholdAPI(t *testing.T) {
	d, srv := startDaemon(t)

	var got map[string]int
	assert.Equal(t, http.StatusOK, doJSON(t, "PUT", srv.URL+"/api/v1/threshold", map[string]int{"threshold": -80}, &got))
	assert.Equal(t, -80, got["threshold"])

	assert.Equal(t, http.StatusBadRequest, doJSON(t, "PUT", srv.URL+"/api/v1/threshold", map[string]string{}, nil))

	assert.Equal(t, http.StatusOK, doJSON(t, "POST", srv.URL+"/api/v1/threshold/save", nil, nil))

	got = nil
	assert.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/v1/threshold", nil, &got))
	assert.Equal(t, -80, got["threshold"])
	assert.Equal(t, -80, d.engine.Model().Threshold())
}

func TestScreenAPI(t *testing.T) {
	_, srv := startDaemon(t)

	assert.Equal(t, http.StatusOK, doJSON(t, "PUT", srv.URL+"/api/v1/screen", map[string]string{"screen": "spectrum"}, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, "PUT", srv.URL+"/api/v1/screen", map[string]string{"screen": "nope"}, nil))

	var view display.View
	assert.Equal(t, http.StatusOK, doJSON(t, "POST", srv.URL+"/api/v1/swipe", map[string]string{"direction": "left"}, &view))
	assert.Equal(t, "main", view.Screen)
	assert.Equal(t, "detection", view.Mode)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, "POST", srv.URL+"/api/v1/menu", map[string]string{"card": "subghz"}, nil))
}

func TestHistoryAPI(t *testing.T) {
	_, srv := startDaemon(t)

	var dets map[string]interface{}
	assert.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/v1/detections?limit=5", nil, &dets))
	assert.Equal(t, float64(0), dets["count"])

	var stats map[string]interface{}
	assert.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/v1/stats", nil, &stats))
	assert.Equal(t, float64(0), stats["total"])

	assert.Equal(t, http.StatusOK, doJSON(t, "POST", srv.URL+"/api/v1/chime", map[string]string{"event": "detect"}, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, "POST", srv.URL+"/api/v1/chime", map[string]string{"event": "horn"}, nil))
}

func TestViewWebSocket(t *testing.T) {
	d, srv := startDaemon(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/view"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var view display.View
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "menu", view.Screen)

	d.engine.Model().SetScreen(display.ScreenSpectrum)
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "spectrum", view.Screen)
}
