package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilievs/pinhub/config"
	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/ota"
	"github.com/ilievs/pinhub/protocol"
	"github.com/ilievs/pinhub/session"
	"github.com/ilievs/pinhub/store"
)

type testServer struct {
	*Server
	store    *store.Store
	sessions *session.Registry
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.FromConfig([]config.UserConfig{{
		Key: "alice",
		Dashboards: []config.DashboardConfig{{
			ID: 1, Name: "Home",
			Devices: []core.Device{{ID: 0, Name: "esp", Token: "tok"}},
			Widgets: []core.Widget{{ID: 4, Type: core.KindSlider, Label: "Temp", PinType: core.PinVirtual, Pin: 4}},
		}},
	}})
	require.NoError(t, err)
	sessions := session.NewRegistry()
	srv := NewServer(Options{APIKey: apiKey}, st, sessions, ota.NewManager(st, log), log)
	return &testServer{Server: srv, store: st, sessions: sessions}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestGetDashboard(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodGet, "/api/alice/dashboards/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	v := decode[dashboardView](t, rec)
	assert.Equal(t, "Home", v.Name)
	assert.False(t, v.IsActive)
	require.Len(t, v.Widgets, 1)
	assert.Equal(t, "Temp", v.Widgets[0].Label)
	require.Len(t, v.Devices, 1)
	assert.False(t, v.Devices[0].Online)
	assert.NotContains(t, rec.Body.String(), "tok", "tokens stay private")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/bob/dashboards/1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/alice/dashboards/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/alice/dashboards/x", "").Code)
}

func TestListDashboards(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodGet, "/api/alice/dashboards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dashboardView](t, rec), 1)
}

func TestActivateDeactivate(t *testing.T) {
	s := newTestServer(t, "")
	dash, err := s.store.Dashboard("alice", 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/alice/dashboards/1/activate", "").Code)
	assert.True(t, dash.IsActive())
	assert.NotZero(t, dash.Snapshot().UpdatedAt)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/alice/dashboards/1/deactivate", "").Code)
	assert.False(t, dash.IsActive())
}

func TestWidgetCRUD(t *testing.T) {
	s := newTestServer(t, "")
	base := "/api/alice/dashboards/1/widgets"

	rec := s.do(http.MethodPost, base, `{"id":7,"type":"BUTTON","pin":7,"pinType":"VIRTUAL","onLabel":"on"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "on", decode[core.Widget](t, rec).OnLabel)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base, `{"id":7,"type":"BUTTON"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base, `{"id":8,"type":"KNOB"}`).Code)

	rec = s.do(http.MethodPut, base+"/7", `{"type":"BUTTON","offLabel":"off"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	w := decode[core.Widget](t, rec)
	assert.Equal(t, int64(7), w.ID)
	assert.Equal(t, "off", w.OffLabel)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, base+"/99", `{"type":"BUTTON"}`).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base+"/7", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, base+"/7", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, base+"/x", "").Code)
}

func TestSetWidgetProperty(t *testing.T) {
	s := newTestServer(t, "")
	path := "/api/alice/dashboards/1/widgets/4/property"

	rec := s.do(http.MethodPost, path, `{"name":"x","value":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code, "layout is allowed from the app")
	assert.Equal(t, 3, decode[core.Widget](t, rec).X)

	rec = s.do(http.MethodPost, path, `{"name":"color","value":"#23C48E"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(600084223), decode[core.Widget](t, rec).Color)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path, `{"name":"YYY","value":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path, `{"name":"url","value":"http://a"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, path, `{"name":"min","value":"ten"}`).Code)
	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPost, "/api/alice/dashboards/1/widgets/5/property", `{"name":"label","value":"a"}`).Code)
}

func TestAddRemoveDevice(t *testing.T) {
	s := newTestServer(t, "")
	base := "/api/alice/dashboards/1/devices"

	rec := s.do(http.MethodPost, base, `{"id":1,"name":"uno","token":"tok-uno"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tok-uno")

	ref, err := s.store.ResolveDeviceToken("tok-uno")
	require.NoError(t, err)
	assert.Equal(t, 1, ref.Device.ID)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base, `{"id":1,"token":"x"}`).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base, `{"id":2,"token":"tok-uno"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base, `{"id":3,"token":"a/b"}`).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base+"/1", "").Code)
	_, err = s.store.ResolveDeviceToken("tok-uno")
	assert.ErrorIs(t, err, store.ErrTokenNotFound)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, base+"/1", "").Code)
}

func TestInitiateOTA(t *testing.T) {
	s := newTestServer(t, "")
	rec := s.do(http.MethodPost, "/api/alice/dashboards/1/devices/0/ota", `{"url":"http://fw/2.bin","build":"b2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, core.OTAStarted, decode[core.OTAInfo](t, rec).Status)

	v := decode[dashboardView](t, s.do(http.MethodGet, "/api/alice/dashboards/1", ""))
	require.NotNil(t, v.Devices[0].OTA)
	assert.Equal(t, "b2", v.Devices[0].OTA.Build)

	assert.Equal(t, http.StatusNotFound,
		s.do(http.MethodPost, "/api/alice/dashboards/1/devices/3/ota", `{"url":"u","build":"b"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		s.do(http.MethodPost, "/api/alice/dashboards/1/devices/0/ota", `{"url":""}`).Code)
}

func TestAPIKey(t *testing.T) {
	s := newTestServer(t, "secret")

	missing := s.do(http.MethodGet, "/api/alice/dashboards/1", "").Code
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusUnauthorized}, missing)

	req := httptest.NewRequest(http.MethodGet, "/api/alice/dashboards/1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/alice/dashboards/1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/alice/dashboards/1?key=secret", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "").Code)
}

func TestAppSocketReceivesFanOut(t *testing.T) {
	s := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/alice/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var sess *session.Session
	assert.Eventually(t, func() bool {
		var ok bool
		sess, ok = s.sessions.Get("alice")
		return ok && sess.AppCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, sess.SendToApps(protocol.SetWidgetProperty, 1, 0, "4 label Hi"))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	f, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.StringMessage(protocol.SetWidgetProperty, 1, "1-0 4 label Hi"), f)

	ping, err := protocol.Encode(protocol.StringMessage(protocol.Ping, 9, ""))
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, ping))
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	f, err = protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.OKFrame(9), f)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		return sess.AppCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestAppSocketUnknownUser(t *testing.T) {
	s := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/bob/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppConnSafeSend(t *testing.T) {
	c := newAppConn(nil, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, c.SafeSend([]byte("a")))
	assert.False(t, c.SafeSend([]byte("b")), "buffer full")
	c.Close()
	c.Close()
	assert.False(t, c.Send(protocol.OKFrame(1)))
}
