package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"feedback-notifier/internal/usecase"
)

// Dispatcher runs one batch pass over the subjects table.
type Dispatcher interface {
	Run(ctx context.Context) (usecase.DispatchSummary, error)
}

// DispatchResponse is returned to the invoker for observability; the
// trigger itself ignores it.
type DispatchResponse struct {
	Run     string `json:"run"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// DispatchHandler adapts the scheduled trigger to the dispatch pass. The
// trigger payload carries no information and is ignored.
type DispatchHandler struct {
	dispatcher Dispatcher
}

func NewDispatchHandler(d Dispatcher) (*DispatchHandler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	return &DispatchHandler{dispatcher: d}, nil
}

func (h *DispatchHandler) Handle(ctx context.Context, _ json.RawMessage) (DispatchResponse, error) {
	summary, err := h.dispatcher.Run(ctx)
	if err != nil {
		slog.Error("dispatch pass failed", "err", err)
		return DispatchResponse{}, err
	}
	slog.Info("dispatch pass finished",
		"run", summary.RunID, "sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	return DispatchResponse{
		Run:     summary.RunID,
		Sent:    summary.Sent,
		Skipped: summary.Skipped,
		Failed:  summary.Failed,
	}, nil
}
