package triage

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
)

// Notifier delivers high-severity triage results to responders.
type Notifier interface {
	Send(ctx context.Context, in Input, r *Report) error
}

// Service is the business boundary for triage operations.
type Service struct {
	engine    *Engine
	logger    log.Logger
	notifier  Notifier
	notifyMin Severity
	onNotify  func(err error)
}

// NewService creates a new triage service. notifier may be nil.
func NewService(engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if engine == nil {
		panic(xerrors.New("triage engine is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		engine:    engine,
		logger:    logger,
		notifier:  notifier,
		notifyMin: SeverityHigh,
	}
	if metrics != nil {
		s.onNotify = metrics.observeNotify
	}
	return s
}

// Assess scores a message and, for HIGH or CRITICAL results, dispatches a
// notification in the background. Notification failures never affect the result.
func (s *Service) Assess(ctx context.Context, in Input) *Report {
	r := s.engine.Assess(ctx, in)

	if s.notifier != nil && r.Structured.Severity.Rank() >= s.notifyMin.Rank() {
		// detach from the request so the response is not held up by the webhook
		go s.notify(context.WithoutCancel(ctx), in, r)
	}
	return r
}

func (s *Service) notify(ctx context.Context, in Input, r *Report) {
	err := s.notifier.Send(ctx, in, r)
	if err != nil {
		s.logger.Error(ctx, err, "triage notification failed", "triage_id", r.ID, "severity", r.Structured.Severity)
	}
	if s.onNotify != nil {
		s.onNotify(err)
	}
}
