package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Harishwarrior/jankkiller/internal/observer"
	"github.com/Harishwarrior/jankkiller/internal/transport"
)

// handleIngestWS accepts the instrumented app's event stream: one JSON
// envelope per WebSocket message. Protocol inconsistencies are counted and
// logged but never tear the connection down; later sessions on the same
// stream are usually still usable.
func (d *Deps) handleIngestWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	d.Logger.Info().Str("client", r.RemoteAddr).Msg("instrumentation stream connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			d.Logger.Info().Str("client", r.RemoteAddr).Msg("instrumentation stream closed")
			return
		}
		env, err := transport.Decode(data)
		if err != nil {
			d.Logger.Warn().Err(err).Msg("undecodable stream message dropped")
			continue
		}
		if !transport.Owns(env.Kind) {
			continue
		}
		d.Metrics.IngestEventsTotal.WithLabelValues(env.Kind).Inc()
		if env.Kind == transport.KindFrameBatch {
			var fb transport.FrameBatch
			if json.Unmarshal(env.Payload, &fb) == nil {
				d.Metrics.FramesTotal.Add(float64(fb.FrameCount))
			}
		}
		if err := d.Manager.HandleEnvelope(env); err != nil {
			if errors.Is(err, observer.ErrUnknownSession) {
				d.Metrics.ProtocolErrorsTotal.Inc()
			}
			d.Logger.Error().Err(err).Str("kind", env.Kind).Msg("stream event rejected")
			continue
		}
		d.syncSessionGauge()
	}
}

func (d *Deps) syncSessionGauge() {
	open := 0
	for _, s := range d.Manager.Sessions() {
		if s.Active() {
			open++
		}
	}
	d.Metrics.ActiveSessions.Set(float64(open))
}
