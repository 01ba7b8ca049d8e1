package triageapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/apex/internal/triage"
)

type triageResponse struct {
	OK         bool              `json:"ok"`
	ID         string            `json:"id"`
	Summary    string            `json:"summary"`
	Structured triage.Structured `json:"structured"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error(r.Context(), fmt.Errorf("panic: %v", rec), "triage handler panicked")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		// a broken body reads as an empty submission
		a.logger.Warn(r.Context(), "failed to read triage body", "error", err)
		body = nil
	}

	in := decodeInput(body)
	report := a.triage.Assess(r.Context(), in)

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("apex.triage.id", report.ID),
		attribute.String("apex.triage.severity", string(report.Structured.Severity)),
	)

	writeJSON(w, http.StatusOK, triageResponse{
		OK:         true,
		ID:         report.ID,
		Summary:    report.Summary,
		Structured: report.Structured,
	})
}

// decodeInput extracts the known string fields from a JSON object. Anything
// else (malformed JSON, non-objects, non-string values) reads as empty.
func decodeInput(body []byte) triage.Input {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return triage.Input{}
	}
	return triage.Input{
		Kind:    stringField(raw, "kind"),
		Subject: stringField(raw, "subject"),
		Sender:  stringField(raw, "sender"),
		Details: stringField(raw, "details"),
	}
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
