// Package triageapi exposes message triage and the security assistant over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/apex/internal/assistant"
	"github.com/linnemanlabs/apex/internal/triage"
)

// MaxBodyBytes caps request bodies on every route.
const MaxBodyBytes = 64 << 10

// TriageService defines the triage operation the API needs.
type TriageService interface {
	Assess(ctx context.Context, in triage.Input) *triage.Report
}

// Assistant defines the assistant operation the API needs.
type Assistant interface {
	Reply(ctx context.Context, prompt string) (*assistant.Reply, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	triage    TriageService
	assistant Assistant
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, asst Assistant) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if asst == nil {
		panic(xerrors.New("assistant is required"))
	}
	return &API{
		logger:    logger,
		triage:    svc,
		assistant: asst,
	}
}

// RegisterRoutes attaches API endpoints to the router. mws wrap only the API
// routes, typically authentication.
func (a *API) RegisterRoutes(r chi.Router, mws ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mws...)
		r.Post("/triage", a.handleTriage)
		r.Post("/assistant", a.handleAssistant)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
