// Package export serializes session collections to the interchange JSON
// schema and back. The round trip is lossless for every session field.
package export

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/Harishwarrior/jankkiller/internal/domain"
)

// SchemaVersion is written into every export envelope.
const SchemaVersion = "1.0"

var (
	// ErrInvalidFormat marks a payload that is not a valid export archive.
	ErrInvalidFormat = errors.New("invalid export format")
	// ErrUnsupportedSchema marks an archive from an incompatible schema
	// major version.
	ErrUnsupportedSchema = errors.New("unsupported schema version")
)

// Meta is the export envelope.
type Meta struct {
	SchemaVersion  string `json:"schemaVersion"`
	AppID          string `json:"appId"`
	FlutterVersion string `json:"flutterVersion"`
	Timestamp      int64  `json:"timestamp"`
	Device         string `json:"device"`
	TotalFrames    int64  `json:"totalFrames,omitempty"`
}

// Archive is a full export: envelope plus completed sessions.
type Archive struct {
	Meta     Meta              `json:"meta"`
	Sessions []*domain.Session `json:"sessions"`
}

// Marshal serializes an archive.
func Marshal(a Archive) ([]byte, error) {
	if a.Sessions == nil {
		a.Sessions = []*domain.Session{}
	}
	return json.Marshal(a)
}

// Unmarshal parses an archive, surfacing malformed payloads as
// ErrInvalidFormat and incompatible schema versions as ErrUnsupportedSchema.
// Unknown minor versions of the current major are accepted.
func Unmarshal(data []byte) (Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return Archive{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if a.Meta.SchemaVersion == "" {
		return Archive{}, fmt.Errorf("%w: missing schemaVersion", ErrInvalidFormat)
	}
	if major(a.Meta.SchemaVersion) != major(SchemaVersion) {
		return Archive{}, fmt.Errorf("%w: %q", ErrUnsupportedSchema, a.Meta.SchemaVersion)
	}
	return a, nil
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
