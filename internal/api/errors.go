package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Stages name the remote call that failed.
const (
	StageAnalyze  = "analyze"
	StageGenerate = "generate"
	StageConfig   = "config"
	StageModels   = "models"
	StageDownload = "download"
)

// ServiceError reports a failed remote call: either a non-2xx response or a transport failure.
type ServiceError struct {
	Stage  string
	Status int
	// Detail is the diagnostic text supplied by the service, or the transport error text.
	Detail string
	Err    error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Stage, e.Status, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("%s failed (HTTP %d)", e.Stage, e.Status)
	case e.Detail != "":
		return fmt.Sprintf("%s failed: %s", e.Stage, e.Detail)
	default:
		return fmt.Sprintf("%s failed", e.Stage)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const maxDetailBytes = 2048

// failureDetail extracts the service's "detail" text from an error body, falling back to the raw body.
func failureDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return strings.TrimSpace(text)
		}
		// Validation failures carry a structured detail; keep it readable.
		return clip(string(payload.Detail))
	}
	return clip(strings.TrimSpace(string(body)))
}

// clip caps text at maxDetailBytes without splitting a multi-byte rune.
func clip(text string) string {
	if len(text) <= maxDetailBytes {
		return text
	}
	cut := maxDetailBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
