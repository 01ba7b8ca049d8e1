package triageapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const apologyReply = "Sorry, I encountered an error processing your request. Please try again."

type assistantError struct {
	Error string `json:"error"`
	Reply string `json:"reply"`
}

func (a *API) handleAssistant(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error(r.Context(), fmt.Errorf("panic: %v", rec), "assistant handler panicked")
			writeJSON(w, http.StatusInternalServerError, assistantError{Error: "internal error", Reply: apologyReply})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, assistantError{Error: "request body too large", Reply: apologyReply})
			return
		}
		writeJSON(w, http.StatusBadRequest, assistantError{Error: "unreadable request body", Reply: apologyReply})
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, assistantError{Error: "invalid request body", Reply: apologyReply})
		return
	}
	prompt, _ := raw["prompt"].(string)

	reply, err := a.assistant.Reply(r.Context(), prompt)
	if err != nil {
		a.logger.Error(r.Context(), err, "assistant reply failed")
		writeJSON(w, http.StatusInternalServerError, assistantError{Error: "internal error", Reply: apologyReply})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("apex.assistant.route", reply.Status))

	writeJSON(w, http.StatusOK, reply)
}
