// Package transport defines the serialized event stream that carries
// instrumentation data from the running app to the observer process. The
// framing is one JSON envelope per line/message, so the same codec serves
// WebSocket transports, files, and tests.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/Harishwarrior/jankkiller/internal/domain"
)

const (
	KindScreenStart    = "screen_start"
	KindScreenEnd      = "screen_end"
	KindFrameBatch     = "frame_batch"
	KindCollectorStart = "collector_start"
	KindCollectorStop  = "collector_stop"
)

// Envelope is the wire unit: an event kind plus its undecoded payload.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ScreenStart announces a newly pushed route.
type ScreenStart struct {
	SessionID     string  `json:"sessionId"`
	Route         string  `json:"route"`
	Timestamp     int64   `json:"timestamp"`
	IsPopup       bool    `json:"isPopup"`
	PreviousRoute *string `json:"previousRoute,omitempty"`
}

// ScreenEnd announces a popped route.
type ScreenEnd struct {
	SessionID      string `json:"sessionId"`
	Route          string `json:"route"`
	Timestamp      int64  `json:"timestamp"`
	DurationMicros int64  `json:"durationMicros"`
	FrameCount     int    `json:"frameCount"`
}

// FrameBatch carries a fixed-size group of frame metrics as one event.
type FrameBatch struct {
	Timestamp  int64                `json:"timestamp"`
	FrameCount int                  `json:"frameCount"`
	Frames     []domain.FrameMetric `json:"frames"`
}

// CollectorSignal marks collector start/stop. TotalFrames is only present on
// stop.
type CollectorSignal struct {
	Timestamp   int64  `json:"timestamp"`
	TotalFrames *int64 `json:"totalFrames,omitempty"`
}

// Marshal wraps a payload into an envelope and serializes it.
func Marshal(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("transport: encode %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, Payload: raw})
}

// Decode parses one serialized envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("transport: decode envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("transport: envelope without kind")
	}
	return env, nil
}

// Owns reports whether the envelope kind belongs to this stream. Consumers
// sharing a channel with other traffic drop envelopes this stream does not
// own.
func Owns(kind string) bool {
	switch kind {
	case KindScreenStart, KindScreenEnd, KindFrameBatch, KindCollectorStart, KindCollectorStop:
		return true
	}
	return false
}
