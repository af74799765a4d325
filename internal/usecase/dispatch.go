package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"feedback-notifier/internal/domain"
	"feedback-notifier/internal/repository"
)

// Sender is the outbound SMS transport contract.
type Sender interface {
	Send(ctx context.Context, destination, body string) (string, error)
}

// DispatchStore is the persistence surface the dispatch pass needs.
type DispatchStore interface {
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	SaveDispatch(ctx context.Context, subject domain.Subject, messageID string, stages int) error
}

// DispatchService sends the initial notification to every subject that has
// not received one yet and establishes the conversation tracking state.
type DispatchService struct {
	store       DispatchStore
	sender      Sender
	catalog     *Catalog
	stages      int
	parallelism int
}

// DispatchOutcome reports what happened for a single subject.
type DispatchOutcome struct {
	MessageID string
	Skipped   bool
}

// DispatchSummary aggregates one batch pass.
type DispatchSummary struct {
	RunID   string
	Sent    int
	Skipped int
	Failed  int
}

func NewDispatchService(store DispatchStore, sender Sender, catalog *Catalog, cfg Config) (*DispatchService, error) {
	if store == nil {
		return nil, errors.New("usecase: dispatch store must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	cfg = cfg.withDefaults()
	return &DispatchService{
		store:       store,
		sender:      sender,
		catalog:     catalog,
		stages:      cfg.Stages,
		parallelism: cfg.Parallelism,
	}, nil
}

// Run scans all subjects and dispatches to each pending one with bounded
// parallelism. Subjects are independent, so one failure never stops the
// pass; failures are logged and counted.
func (s *DispatchService) Run(ctx context.Context) (DispatchSummary, error) {
	summary := DispatchSummary{RunID: uuid.NewString()}
	log := slog.With("run", summary.RunID)

	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return summary, newError(ErrorTransient, "subject_scan_error", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.parallelism)
	for _, subject := range subjects {
		subject := subject
		g.Go(func() error {
			out, err := s.Dispatch(ctx, subject)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				log.Error("dispatch failed", "subject", subject.ID, "err", err)
			case out.Skipped:
				summary.Skipped++
			default:
				summary.Sent++
				log.Info("notification sent", "subject", subject.ID, "messageId", out.MessageID)
			}
			return nil
		})
	}
	_ = g.Wait()
	return summary, nil
}

// Dispatch sends the initial notification for one subject. Subjects already
// marked Sent are skipped without touching the transport; this guard is the
// sole defense against duplicate sends for the same trigger.
func (s *DispatchService) Dispatch(ctx context.Context, subject domain.Subject) (DispatchOutcome, error) {
	if subject.Dispatched() {
		return DispatchOutcome{Skipped: true}, nil
	}

	body, err := s.catalog.Notification(ctx, subject.Locale)
	if err != nil {
		return DispatchOutcome{}, newError(ErrorInternal, "catalog_load_error", err)
	}

	messageID, err := s.sender.Send(ctx, subject.Phone, body)
	if err != nil {
		// Nothing was persisted; the subject stays NotSent and the
		// next pass retries it.
		return DispatchOutcome{}, newError(ErrorTransient, "sms_send_error", err)
	}

	if err := s.store.SaveDispatch(ctx, subject, messageID, s.stages); err != nil {
		if errors.Is(err, repository.ErrAlreadyDispatched) {
			// A concurrent pass won the race after our send went
			// out: the recipient got two messages.
			return DispatchOutcome{}, newError(ErrorPartialWrite, "duplicate_dispatch_race", err)
		}
		// The message is out but tracking state is missing; retrying
		// would send again, so this is flagged instead.
		return DispatchOutcome{}, newError(ErrorPartialWrite, "tracking_write_error", err)
	}

	return DispatchOutcome{MessageID: messageID}, nil
}
