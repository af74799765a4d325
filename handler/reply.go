package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"feedback-notifier/internal/domain"
	"feedback-notifier/internal/usecase"
)

// Advancer processes one inbound reply event.
type Advancer interface {
	Advance(ctx context.Context, event domain.ReplyEvent) (usecase.AdvanceOutcome, error)
}

// inboundSMS is the JSON payload Pinpoint publishes to SNS for two-way SMS.
// PreviousPublishedMessageID correlates the reply with the outbound message
// it answers.
type inboundSMS struct {
	OriginationNumber          string `json:"originationNumber"`
	DestinationNumber          string `json:"destinationNumber"`
	MessageBody                string `json:"messageBody"`
	InboundMessageID           string `json:"inboundMessageId"`
	PreviousPublishedMessageID string `json:"previousPublishedMessageId"`
}

// ReplyHandler fans one SNS delivery out to the advancer, one record at a
// time. Records are independent: a malformed or corrupt record is logged
// and its siblings still get processed.
type ReplyHandler struct {
	advancer Advancer
}

func NewReplyHandler(a Advancer) (*ReplyHandler, error) {
	if a == nil {
		return nil, errors.New("handler: advancer must not be nil")
	}
	return &ReplyHandler{advancer: a}, nil
}

// Handle processes every record in the SNS event. It returns an error only
// when at least one record hit a transient failure, so the transport
// redelivers the batch; redelivered records that already went through
// resolve as skips.
func (h *ReplyHandler) Handle(ctx context.Context, event events.SNSEvent) error {
	retryable := 0
	for _, record := range event.Records {
		if err := h.handleRecord(ctx, record); err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorTransient {
				retryable++
			}
			slog.Error("reply processing failed", "sns", record.SNS.MessageID, "err", err)
		}
	}
	if retryable > 0 {
		return fmt.Errorf("handler: %d of %d records failed transiently", retryable, len(event.Records))
	}
	return nil
}

func (h *ReplyHandler) handleRecord(ctx context.Context, record events.SNSEventRecord) error {
	var sms inboundSMS
	if err := json.Unmarshal([]byte(record.SNS.Message), &sms); err != nil {
		return fmt.Errorf("handler: decode inbound SMS: %w", err)
	}

	outcome, err := h.advancer.Advance(ctx, domain.ReplyEvent{
		MessageID:   sms.PreviousPublishedMessageID,
		Origination: sms.OriginationNumber,
		Body:        sms.MessageBody,
	})
	if err != nil {
		return err
	}

	switch outcome.Status {
	case usecase.StatusSkipped:
		slog.Info("reply skipped", "sns", record.SNS.MessageID, "reason", outcome.Reason)
	case usecase.StatusCompleted:
		slog.Info("conversation completed", "subject", outcome.SubjectID, "stage", outcome.Stage)
	default:
		slog.Info("conversation advanced",
			"subject", outcome.SubjectID, "stage", outcome.Stage, "nextMessageId", outcome.NextMessageID)
	}
	return nil
}
