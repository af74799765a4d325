package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"feedback-notifier/internal/domain"
	"feedback-notifier/internal/repository"
)

// AdvanceStore is the persistence surface reply processing needs.
type AdvanceStore interface {
	GetCorrelation(ctx context.Context, messageID string) (domain.CorrelationEntry, error)
	ConsumeCorrelation(ctx context.Context, messageID string) error
	PutCorrelation(ctx context.Context, entry domain.CorrelationEntry) error
	RecordScore(ctx context.Context, subjectID string, stage, score int) error
}

type AdvanceStatus string

const (
	// StatusAdvanced means the reply was recorded and the next question
	// went out under a fresh message id.
	StatusAdvanced AdvanceStatus = "advanced"
	// StatusCompleted means the final stage's reply was recorded and the
	// closing text sent; the conversation is no longer tracked.
	StatusCompleted AdvanceStatus = "completed"
	// StatusSkipped means the event was dropped without mutating state.
	StatusSkipped AdvanceStatus = "skipped"
)

// AdvanceOutcome describes how one inbound reply was handled.
type AdvanceOutcome struct {
	Status        AdvanceStatus
	Reason        string
	SubjectID     string
	Stage         int
	NextMessageID string
}

// AdvanceService drives the per-subject conversation: each valid inbound
// reply records its stage's score and moves the conversation one stage
// forward until the final stage closes it.
type AdvanceService struct {
	store   AdvanceStore
	sender  Sender
	catalog *Catalog
	stages  int
}

func NewAdvanceService(store AdvanceStore, sender Sender, catalog *Catalog, cfg Config) (*AdvanceService, error) {
	if store == nil {
		return nil, errors.New("usecase: advance store must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	cfg = cfg.withDefaults()
	return &AdvanceService{
		store:   store,
		sender:  sender,
		catalog: catalog,
		stages:  cfg.Stages,
	}, nil
}

func skip(reason string) AdvanceOutcome {
	return AdvanceOutcome{Status: StatusSkipped, Reason: reason}
}

// Advance processes one inbound reply event. Malformed or unresolvable
// events are skipped, never failed: the transport redelivers at least once
// and out-of-band texts (STOP and friends) share the reply channel.
func (s *AdvanceService) Advance(ctx context.Context, event domain.ReplyEvent) (AdvanceOutcome, error) {
	score, err := strconv.Atoi(strings.TrimSpace(event.Body))
	if err != nil {
		return skip("non_numeric_reply"), nil
	}
	messageID := strings.TrimSpace(event.MessageID)
	if messageID == "" {
		return skip("missing_message_id"), nil
	}

	entry, err := s.store.GetCorrelation(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrCorrelationNotFound) {
			// No tracked conversation, or a replay of an id that
			// was already consumed.
			return skip("unknown_message_id"), nil
		}
		return AdvanceOutcome{}, newError(ErrorTransient, "correlation_read_error", err)
	}
	if entry.Stage < 1 || entry.Stage > s.stages {
		return AdvanceOutcome{}, newError(ErrorDataIntegrity, "stage_out_of_range",
			fmt.Errorf("message %s has stage %d", messageID, entry.Stage))
	}

	// Resolve the outgoing body before consuming the entry so catalog
	// failures leave the conversation untouched and retryable.
	terminal := entry.Stage == s.stages
	var reply string
	if terminal {
		reply, err = s.catalog.Closing(ctx)
	} else {
		reply, err = s.catalog.Question(ctx, entry.Stage+1)
	}
	if err != nil {
		// Nothing has been consumed yet, so the transport is free to
		// redeliver once the parameter store is reachable again.
		return AdvanceOutcome{}, newError(ErrorTransient, "catalog_load_error", err)
	}

	// Consuming the entry is the serialization point: of two replies
	// racing for the same conversation, exactly one gets past here.
	if err := s.store.ConsumeCorrelation(ctx, messageID); err != nil {
		if errors.Is(err, repository.ErrCorrelationConsumed) {
			return skip("already_consumed"), nil
		}
		return AdvanceOutcome{}, newError(ErrorTransient, "correlation_consume_error", err)
	}

	// Past this point the entry is gone; any failure leaves the
	// conversation half-advanced and is flagged rather than retried.
	if err := s.store.RecordScore(ctx, entry.SubjectID, entry.Stage, score); err != nil {
		return AdvanceOutcome{}, newError(ErrorPartialWrite, "score_write_error", err)
	}

	newMessageID, err := s.sender.Send(ctx, event.Origination, reply)
	if err != nil {
		return AdvanceOutcome{}, newError(ErrorPartialWrite, "reply_send_error", err)
	}

	outcome := AdvanceOutcome{
		SubjectID: entry.SubjectID,
		Stage:     entry.Stage,
	}
	if terminal {
		// No new correlation entry: the conversation is finished and
		// further replies will resolve as unknown.
		outcome.Status = StatusCompleted
		return outcome, nil
	}

	next := domain.CorrelationEntry{
		MessageID: newMessageID,
		SubjectID: entry.SubjectID,
		Stage:     entry.Stage + 1,
	}
	if err := s.store.PutCorrelation(ctx, next); err != nil {
		// The question went out but its id is untracked; the reply to
		// it will be unresolvable.
		return AdvanceOutcome{}, newError(ErrorPartialWrite, "correlation_write_error", err)
	}
	outcome.Status = StatusAdvanced
	outcome.NextMessageID = newMessageID
	return outcome, nil
}
