package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Harishwarrior/jankkiller/internal/domain"
	"github.com/Harishwarrior/jankkiller/internal/export"
)

// sessionSummary is the list-view projection: identity plus aggregates,
// without the frame array.
type sessionSummary struct {
	ID              string            `json:"id"`
	Route           string            `json:"route"`
	StartTimeMicros int64             `json:"startTimeMicros"`
	EndTimeMicros   *int64            `json:"endTimeMicros"`
	IsPopup         bool              `json:"isPopup"`
	PreviousRoute   *string           `json:"previousRoute"`
	Active          bool              `json:"active"`
	DurationMicros  int64             `json:"durationMicros"`
	Stats           domain.FrameStats `json:"stats"`
	InsightCount    int               `json:"insightCount"`
}

func summarize(s *domain.Session) sessionSummary {
	return sessionSummary{
		ID:              s.ID,
		Route:           s.Route,
		StartTimeMicros: s.StartTimeMicros,
		EndTimeMicros:   s.EndTimeMicros,
		IsPopup:         s.IsPopup,
		PreviousRoute:   s.PreviousRoute,
		Active:          s.Active(),
		DurationMicros:  s.DurationMicros(),
		Stats:           domain.ComputeFrameStats(s.Frames),
		InsightCount:    len(s.Insights),
	}
}

func (d *Deps) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	sessions := d.Manager.Sessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":    out,
		"total":       len(out),
		"totalFrames": d.Manager.TotalFrames(),
		"activeId":    d.Manager.ActiveID(),
	})
}

// handleSessionByID serves /api/sessions/{id} and /api/sessions/{id}/insights.
func (d *Deps) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sid, sub, _ := strings.Cut(rest, "/")
	sess, ok := d.Manager.Session(sid)
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no such session", map[string]any{"id": sid})
		return
	}
	switch sub {
	case "":
		writeJSON(w, http.StatusOK, sess)
	case "insights":
		writeJSON(w, http.StatusOK, map[string]any{"sessionId": sess.ID, "insights": sess.Insights})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown session resource", map[string]any{"resource": sub})
	}
}

func (d *Deps) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	archive := export.Archive{
		Meta: export.Meta{
			SchemaVersion:  export.SchemaVersion,
			AppID:          d.Cfg.AppID,
			FlutterVersion: d.Cfg.FlutterVersion,
			Device:         d.Cfg.Device,
			Timestamp:      time.Now().UnixMicro(),
			TotalFrames:    d.Manager.TotalFrames(),
		},
		Sessions: d.Manager.CompletedSessions(),
	}
	data, err := export.Marshal(archive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (d *Deps) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST", nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "READ_FAILED", err.Error(), nil)
		return
	}
	archive, err := export.Unmarshal(body)
	switch {
	case errors.Is(err, export.ErrUnsupportedSchema):
		writeError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_SCHEMA", err.Error(), nil)
		return
	case errors.Is(err, export.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), nil)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), nil)
		return
	}
	added := d.Manager.Load(archive.Sessions)
	writeJSON(w, http.StatusOK, map[string]any{"imported": added, "meta": archive.Meta})
}

func (d *Deps) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET", nil)
		return
	}
	baseID := r.URL.Query().Get("baseline")
	candID := r.URL.Query().Get("candidate")
	if baseID == "" || candID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAM", "baseline and candidate query params are required", nil)
		return
	}
	base, ok := d.Manager.Session(baseID)
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "baseline session not found", map[string]any{"id": baseID})
		return
	}
	cand, ok := d.Manager.Session(candID)
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "candidate session not found", map[string]any{"id": candID})
		return
	}
	writeJSON(w, http.StatusOK, export.Compare(base, cand))
}
