package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/export"
	"github.com/Harishwarrior/jankkiller/internal/infrastructure/config"
	httpapi "github.com/Harishwarrior/jankkiller/internal/infrastructure/httpapi"
	obs "github.com/Harishwarrior/jankkiller/internal/infrastructure/observability"
	"github.com/Harishwarrior/jankkiller/internal/instrument"
	"github.com/Harishwarrior/jankkiller/internal/observer"
	"github.com/Harishwarrior/jankkiller/internal/transport"
)

func startAppServer(t *testing.T) (*httptest.Server, *httpapi.Deps) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	metrics := obs.NewMetrics()
	hub := httpapi.NewMonitorHub()
	mgr := observer.NewManager(nil, func() {
		hub.Broadcast(httpapi.MonitorEvent{Type: "sessions_changed"})
	}, &logger)
	deps := &httpapi.Deps{
		Cfg:     config.Config{CORSAllowOrigin: "*", AppID: "com.example.shop", FlutterVersion: "3.24.0", Device: "emulator"},
		Logger:  &logger,
		Metrics: metrics,
		Manager: mgr,
		Monitor: hub,
	}
	srv := httptest.NewServer(httpapi.NewRouter(deps))
	return srv, deps
}

func wsURLFromHTTP(base string, path string) string {
	b := base
	if strings.HasPrefix(b, "http://") {
		b = "ws://" + strings.TrimPrefix(b, "http://")
	} else if strings.HasPrefix(b, "https://") {
		b = "wss://" + strings.TrimPrefix(b, "https://")
	}
	return b + path
}

func sendEvent(t *testing.T, c *websocket.Conn, kind string, payload any) {
	t.Helper()
	data, err := transport.Marshal(kind, payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", kind, err)
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", kind, err)
	}
}

func frame(n int, ts, build, raster int64) domain.FrameMetric {
	return domain.FrameMetric{
		FrameNumber:          n,
		TimestampMicros:      ts,
		BuildDurationMicros:  build,
		RasterDurationMicros: raster,
		TotalDurationMicros:  build + raster,
	}
}

type sessionList struct {
	Sessions []struct {
		ID           string `json:"id"`
		Route        string `json:"route"`
		Active       bool   `json:"active"`
		InsightCount int    `json:"insightCount"`
		Stats        struct {
			FrameCount  int     `json:"frameCount"`
			JankyCount  int     `json:"jankyCount"`
			AvgRasterMs float64 `json:"avgRasterMs"`
		} `json:"stats"`
	} `json:"sessions"`
	Total       int    `json:"total"`
	TotalFrames int64  `json:"totalFrames"`
	ActiveID    string `json:"activeId"`
}

func fetchSessions(t *testing.T, srv *httptest.Server) sessionList {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions list status: %d", resp.StatusCode)
	}
	var list sessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode sessions list: %v", err)
	}
	return list
}

func TestIngestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	appSrv, _ := startAppServer(t)
	defer appSrv.Close()

	// monitor client observes change notifications
	mon, _, err := websocket.DefaultDialer.Dial(wsURLFromHTTP(appSrv.URL, "/api/monitor/ws"), nil)
	if err != nil {
		t.Fatalf("monitor dial: %v", err)
	}
	defer mon.Close()

	ing, _, err := websocket.DefaultDialer.Dial(wsURLFromHTTP(appSrv.URL, "/api/ingest/ws"), nil)
	if err != nil {
		t.Fatalf("ingest dial: %v", err)
	}
	defer ing.Close()

	// a home screen, then a janky detail screen on top of it
	homeRoute := "/home"
	sendEvent(t, ing, transport.KindScreenStart, transport.ScreenStart{
		SessionID: "sess-home", Route: homeRoute, Timestamp: 1_000_000,
	})
	sendEvent(t, ing, transport.KindFrameBatch, transport.FrameBatch{
		Timestamp: 1_100_000, FrameCount: 2,
		Frames: []domain.FrameMetric{
			frame(1, 1_010_000, 4000, 6000),
			frame(2, 1_030_000, 4000, 6000),
		},
	})
	sendEvent(t, ing, transport.KindScreenStart, transport.ScreenStart{
		SessionID: "sess-detail", Route: "/detail", Timestamp: 2_000_000, PreviousRoute: &homeRoute,
	})
	sendEvent(t, ing, transport.KindFrameBatch, transport.FrameBatch{
		Timestamp: 2_100_000, FrameCount: 3,
		Frames: []domain.FrameMetric{
			frame(3, 2_010_000, 5000, 15000),
			frame(4, 2_030_000, 5000, 15000),
			frame(5, 2_050_000, 5000, 15000),
		},
	})
	sendEvent(t, ing, transport.KindScreenEnd, transport.ScreenEnd{
		SessionID: "sess-detail", Route: "/detail", Timestamp: 2_500_000, DurationMicros: 500_000, FrameCount: 3,
	})
	sendEvent(t, ing, transport.KindScreenEnd, transport.ScreenEnd{
		SessionID: "sess-home", Route: homeRoute, Timestamp: 3_000_000, DurationMicros: 2_000_000, FrameCount: 2,
	})
	total := int64(5)
	sendEvent(t, ing, transport.KindCollectorStop, transport.CollectorSignal{Timestamp: 3_000_000, TotalFrames: &total})

	// both sessions sealed, nothing active anymore
	var list sessionList
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		list = fetchSessions(t, appSrv)
		if list.Total == 2 && list.ActiveID == "" && list.TotalFrames == 5 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if list.Total != 2 || list.ActiveID != "" {
		t.Fatalf("sessions not sealed: total=%d activeId=%q", list.Total, list.ActiveID)
	}
	if list.TotalFrames != 5 {
		t.Fatalf("totalFrames = %d, want 5 from collector signal", list.TotalFrames)
	}
	for _, s := range list.Sessions {
		if s.Active {
			t.Fatalf("session %s still active", s.ID)
		}
	}

	// enrichment runs async after seal; poll the insights subresource
	var insightsOut struct {
		SessionID string           `json:"sessionId"`
		Insights  []domain.Insight `json:"insights"`
	}
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := appSrv.Client().Get(appSrv.URL + "/api/sessions/sess-detail/insights")
		if err != nil {
			t.Fatalf("insights get: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&insightsOut)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode insights: %v", err)
		}
		if len(insightsOut.Insights) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(insightsOut.Insights) == 0 {
		t.Fatalf("no insights for fully janky session")
	}
	hasJank := false
	for _, in := range insightsOut.Insights {
		if in.Type == "excessive_jank" && in.Severity == domain.SeverityCritical {
			hasJank = true
		}
	}
	if !hasJank {
		t.Fatalf("expected critical excessive_jank, got %+v", insightsOut.Insights)
	}

	// detail view carries the full frame array
	resp, err := appSrv.Client().Get(appSrv.URL + "/api/sessions/sess-home")
	if err != nil {
		t.Fatalf("session get: %v", err)
	}
	var home domain.Session
	err = json.NewDecoder(resp.Body).Decode(&home)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(home.Frames) != 2 || home.Frames[0].FrameNumber != 1 {
		t.Fatalf("home frames = %+v", home.Frames)
	}

	// monitor must have seen at least one change notification
	sawChange := false
	monDeadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(monDeadline) && !sawChange {
		_ = mon.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, data, err := mon.ReadMessage()
		if err != nil {
			continue
		}
		var ev httpapi.MonitorEvent
		if json.Unmarshal(data, &ev) == nil && ev.Type == "sessions_changed" {
			sawChange = true
		}
	}
	if !sawChange {
		t.Fatalf("monitor did not receive sessions_changed")
	}

	// export, import into a fresh server, then compare there
	expResp, err := appSrv.Client().Get(appSrv.URL + "/api/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	archive, err := io.ReadAll(expResp.Body)
	expResp.Body.Close()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var meta struct {
		Meta export.Meta `json:"meta"`
	}
	if err := json.Unmarshal(archive, &meta); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if meta.Meta.SchemaVersion != export.SchemaVersion || meta.Meta.AppID != "com.example.shop" {
		t.Fatalf("export meta = %+v", meta.Meta)
	}

	impSrv, _ := startAppServer(t)
	defer impSrv.Close()
	impResp, err := impSrv.Client().Post(impSrv.URL+"/api/import", "application/json", bytes.NewReader(archive))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var imported struct {
		Imported int `json:"imported"`
	}
	err = json.NewDecoder(impResp.Body).Decode(&imported)
	impResp.Body.Close()
	if err != nil {
		t.Fatalf("decode import: %v", err)
	}
	if imported.Imported != 2 {
		t.Fatalf("imported = %d, want 2", imported.Imported)
	}

	cmpResp, err := impSrv.Client().Get(impSrv.URL + "/api/compare?baseline=sess-home&candidate=sess-detail")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	var diff export.Diff
	err = json.NewDecoder(cmpResp.Body).Decode(&diff)
	cmpResp.Body.Close()
	if err != nil {
		t.Fatalf("decode compare: %v", err)
	}
	if diff.JankPercentDelta != 100 {
		t.Fatalf("jank delta = %v, want 100 (clean baseline vs fully janky candidate)", diff.JankPercentDelta)
	}
	if diff.AvgRasterMsDelta <= 0 {
		t.Fatalf("raster delta = %v, want positive", diff.AvgRasterMsDelta)
	}
}

// fakeFrameSource drives the collector like the rendering pipeline would.
type fakeFrameSource struct {
	fn func(instrument.RawFrameTiming)
}

func (s *fakeFrameSource) Subscribe(fn func(instrument.RawFrameTiming)) func() {
	s.fn = fn
	return func() { s.fn = nil }
}

// The full client stack: registry and tracker on the app side, events shipped
// over a real WebSocket to the observer behind the HTTP API.
func TestInstrumentedClientOverWebSocket(t *testing.T) {
	t.Parallel()

	appSrv, _ := startAppServer(t)
	defer appSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sink, err := transport.DialWS(ctx, wsURLFromHTTP(appSrv.URL, "/api/ingest/ws"))
	if err != nil {
		t.Fatalf("sink dial: %v", err)
	}
	defer sink.Close()

	logger := zerolog.New(io.Discard)
	src := &fakeFrameSource{}
	reg := instrument.NewRegistry(src, sink, instrument.SessionHooks{}, &logger)
	reg.StartCollecting()
	reg.Tracker().Push(instrument.RouteInfo{Name: "/checkout"}, nil)

	// one full batch flushes on the spot
	base := time.Now().UnixMicro()
	for i := 0; i < instrument.BatchSize; i++ {
		src.fn(instrument.RawFrameTiming{
			TimestampMicros:      base + int64(i)*16000,
			BuildDurationMicros:  3000,
			RasterDurationMicros: 5000,
			TotalDurationMicros:  8000,
		})
	}
	reg.Tracker().Pop(instrument.RouteInfo{Name: "/checkout"})
	reg.StopCollecting()

	var list sessionList
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		list = fetchSessions(t, appSrv)
		if list.Total == 1 && list.ActiveID == "" && len(list.Sessions) == 1 && list.Sessions[0].Stats.FrameCount == instrument.BatchSize {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if list.Total != 1 || list.ActiveID != "" {
		t.Fatalf("observer state: total=%d activeId=%q", list.Total, list.ActiveID)
	}
	s := list.Sessions[0]
	if s.Route != "/checkout" {
		t.Fatalf("route = %q", s.Route)
	}
	if s.Stats.FrameCount != instrument.BatchSize || s.Stats.JankyCount != 0 {
		t.Fatalf("stats = %+v", s.Stats)
	}
	if list.TotalFrames != int64(instrument.BatchSize) {
		t.Fatalf("totalFrames = %d, want %d", list.TotalFrames, instrument.BatchSize)
	}
}

func TestVersionAndCORS(t *testing.T) {
	t.Parallel()
	appSrv, _ := startAppServer(t)
	defer appSrv.Close()

	resp, err := appSrv.Client().Get(appSrv.URL + "/api/version")
	if err != nil {
		t.Fatalf("version get: %v", err)
	}
	defer resp.Body.Close()
	var ver map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ver); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if ver["name"] != "jankkiller" {
		t.Fatalf("unexpected name: %v", ver["name"])
	}

	req, _ := http.NewRequest(http.MethodOptions, appSrv.URL+"/api/sessions", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp2, err := appSrv.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status: %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("no Access-Control-Allow-Origin header")
	}
}

func TestImportRejectsBadArchives(t *testing.T) {
	t.Parallel()
	appSrv, _ := startAppServer(t)
	defer appSrv.Close()

	post := func(body string) (*http.Response, error) {
		return appSrv.Client().Post(appSrv.URL+"/api/import", "application/json", strings.NewReader(body))
	}

	resp, err := post(`{not json`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed archive status = %d, want 400", resp.StatusCode)
	}

	resp2, err := post(`{"meta":{"schemaVersion":"2.0"},"sessions":[]}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("future schema status = %d, want 422", resp2.StatusCode)
	}
}

func TestSessionNotFound(t *testing.T) {
	t.Parallel()
	appSrv, _ := startAppServer(t)
	defer appSrv.Close()

	resp, err := appSrv.Client().Get(appSrv.URL + "/api/sessions/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "SESSION_NOT_FOUND" {
		t.Fatalf("error code = %q", body.Error.Code)
	}
}
