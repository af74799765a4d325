package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"feedback-notifier/internal/domain"
	"feedback-notifier/internal/repository"
)

// fakeAdvanceStore keeps correlation entries and scores in memory with the
// same consume-once semantics as the DynamoDB client.
type fakeAdvanceStore struct {
	correlations map[string]domain.CorrelationEntry
	scores       map[string]map[int]int
	getErr       error
	consumeErr   error
	putErr       error
	recordErr    error
	mutations    int
}

func newFakeAdvanceStore(entries ...domain.CorrelationEntry) *fakeAdvanceStore {
	s := &fakeAdvanceStore{
		correlations: make(map[string]domain.CorrelationEntry),
		scores:       make(map[string]map[int]int),
	}
	for _, e := range entries {
		s.correlations[e.MessageID] = e
	}
	return s
}

func (s *fakeAdvanceStore) GetCorrelation(_ context.Context, messageID string) (domain.CorrelationEntry, error) {
	if s.getErr != nil {
		return domain.CorrelationEntry{}, s.getErr
	}
	entry, ok := s.correlations[messageID]
	if !ok {
		return domain.CorrelationEntry{}, repository.ErrCorrelationNotFound
	}
	return entry, nil
}

func (s *fakeAdvanceStore) ConsumeCorrelation(_ context.Context, messageID string) error {
	if s.consumeErr != nil {
		return s.consumeErr
	}
	if _, ok := s.correlations[messageID]; !ok {
		return repository.ErrCorrelationConsumed
	}
	delete(s.correlations, messageID)
	s.mutations++
	return nil
}

func (s *fakeAdvanceStore) PutCorrelation(_ context.Context, entry domain.CorrelationEntry) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.correlations[entry.MessageID] = entry
	s.mutations++
	return nil
}

func (s *fakeAdvanceStore) RecordScore(_ context.Context, subjectID string, stage, score int) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	if s.scores[subjectID] == nil {
		s.scores[subjectID] = make(map[int]int)
	}
	s.scores[subjectID][stage] = score
	s.mutations++
	return nil
}

func mustNewAdvance(t *testing.T, store AdvanceStore, sender Sender) *AdvanceService {
	t.Helper()
	catalog := mustNewCatalog(t, catalogParams())
	s, err := NewAdvanceService(store, sender, catalog, testConfig())
	require.NoError(t, err)
	return s
}

func reply(messageID, body string) domain.ReplyEvent {
	return domain.ReplyEvent{MessageID: messageID, Origination: "+15550001", Body: body}
}

func TestNewAdvanceService_Validation(t *testing.T) {
	catalog := mustNewCatalog(t, catalogParams())
	_, err := NewAdvanceService(nil, &fakeSender{}, catalog, testConfig())
	require.Error(t, err)
	_, err = NewAdvanceService(newFakeAdvanceStore(), nil, catalog, testConfig())
	require.Error(t, err)
	_, err = NewAdvanceService(newFakeAdvanceStore(), &fakeSender{}, nil, testConfig())
	require.Error(t, err)
}

func TestAdvance_NonNumericReplyIsSkipped(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	for _, body := range []string{"hello", "", "4.5", "four"} {
		out, err := s.Advance(context.Background(), reply("C1", body))
		require.NoError(t, err)
		require.Equal(t, StatusSkipped, out.Status)
		require.Equal(t, "non_numeric_reply", out.Reason)
	}
	require.Zero(t, store.mutations)
	require.Zero(t, sender.calls())
}

func TestAdvance_UnknownMessageIDIsSkipped(t *testing.T) {
	store := newFakeAdvanceStore()
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	out, err := s.Advance(context.Background(), reply("C9", "4"))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "unknown_message_id", out.Reason)
	require.Zero(t, sender.calls())
}

func TestAdvance_MissingMessageIDIsSkipped(t *testing.T) {
	s := mustNewAdvance(t, newFakeAdvanceStore(), &fakeSender{ids: []string{"C2"}})
	out, err := s.Advance(context.Background(), reply("  ", "4"))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "missing_message_id", out.Reason)
}

func TestAdvance_StageOutOfRangeIsDataIntegrity(t *testing.T) {
	for _, stage := range []int{0, -1, 5, 42} {
		store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: stage})
		s := mustNewAdvance(t, store, &fakeSender{ids: []string{"C2"}})

		_, err := s.Advance(context.Background(), reply("C1", "4"))
		var ucErr *Error
		require.ErrorAs(t, err, &ucErr)
		require.Equal(t, ErrorDataIntegrity, ucErr.Code)
		require.Equal(t, "stage_out_of_range", ucErr.Reason)
		// entry stays put: integrity problems are for operators, not
		// silent cleanup
		require.Contains(t, store.correlations, "C1")
	}
}

func TestAdvance_MiddleStage(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	out, err := s.Advance(context.Background(), reply("C1", "4"))
	require.NoError(t, err)
	require.Equal(t, StatusAdvanced, out.Status)
	require.Equal(t, "S1", out.SubjectID)
	require.Equal(t, 1, out.Stage)
	require.Equal(t, "C2", out.NextMessageID)

	require.Equal(t, 4, store.scores["S1"][1])
	require.Equal(t, []string{"Question two?"}, sender.bodies)
	require.Equal(t, []string{"+15550001"}, sender.sent)

	require.NotContains(t, store.correlations, "C1")
	require.Equal(t, domain.CorrelationEntry{MessageID: "C2", SubjectID: "S1", Stage: 2}, store.correlations["C2"])
}

func TestAdvance_ReplayAfterConsumptionIsSkipped(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	_, err := s.Advance(context.Background(), reply("C1", "4"))
	require.NoError(t, err)

	out, err := s.Advance(context.Background(), reply("C1", "4"))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "unknown_message_id", out.Reason)
	require.Equal(t, 1, sender.calls())
	require.Equal(t, 4, store.scores["S1"][1])
}

func TestAdvance_FinalStageCompletes(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C4", SubjectID: "S1", Stage: 4})
	sender := &fakeSender{ids: []string{"C5"}}
	s := mustNewAdvance(t, store, sender)

	out, err := s.Advance(context.Background(), reply("C4", "5"))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, out.Status)
	require.Equal(t, 4, out.Stage)
	require.Empty(t, out.NextMessageID)

	require.Equal(t, 5, store.scores["S1"][4])
	require.Equal(t, []string{"Thank you!"}, sender.bodies)
	require.Empty(t, store.correlations)
}

func TestAdvance_LostConsumeRaceIsSkipped(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	store.consumeErr = repository.ErrCorrelationConsumed
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	out, err := s.Advance(context.Background(), reply("C1", "4"))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, out.Status)
	require.Equal(t, "already_consumed", out.Reason)
	require.Zero(t, sender.calls())
	require.Empty(t, store.scores)
}

func TestAdvance_ReadErrorIsTransient(t *testing.T) {
	store := newFakeAdvanceStore()
	store.getErr = errors.New("dynamo down")
	s := mustNewAdvance(t, store, &fakeSender{ids: []string{"C2"}})

	_, err := s.Advance(context.Background(), reply("C1", "4"))
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorTransient, ucErr.Code)
}

func TestAdvance_ScoreWriteFailureIsPartialWrite(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	store.recordErr = errors.New("dynamo down")
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	_, err := s.Advance(context.Background(), reply("C1", "4"))
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorPartialWrite, ucErr.Code)
	require.Equal(t, "score_write_error", ucErr.Reason)
}

func TestAdvance_SendFailureAfterConsumeIsPartialWrite(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	sender := &fakeSender{err: errors.New("pinpoint down")}
	s := mustNewAdvance(t, store, sender)

	_, err := s.Advance(context.Background(), reply("C1", "4"))
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorPartialWrite, ucErr.Code)
	require.Equal(t, "reply_send_error", ucErr.Reason)
	require.NotContains(t, store.correlations, "C1")
}

func TestAdvance_CorrelationWriteFailureIsPartialWrite(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	store.putErr = errors.New("dynamo down")
	sender := &fakeSender{ids: []string{"C2"}}
	s := mustNewAdvance(t, store, sender)

	_, err := s.Advance(context.Background(), reply("C1", "4"))
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorPartialWrite, ucErr.Code)
	require.Equal(t, "correlation_write_error", ucErr.Reason)
}

func TestAdvance_CatalogFailureLeavesEntryUntouched(t *testing.T) {
	store := newFakeAdvanceStore(domain.CorrelationEntry{MessageID: "C1", SubjectID: "S1", Stage: 1})
	sender := &fakeSender{ids: []string{"C2"}}
	catalog, err := NewCatalog(&mockParams{err: errors.New("ssm down")}, testConfig())
	require.NoError(t, err)
	s, err := NewAdvanceService(store, sender, catalog, testConfig())
	require.NoError(t, err)

	_, err = s.Advance(context.Background(), reply("C1", "4"))
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	// Transient so the transport redelivers; the untouched entry makes
	// the redelivery succeed.
	require.Equal(t, ErrorTransient, ucErr.Code)
	require.Equal(t, "catalog_load_error", ucErr.Reason)
	require.Contains(t, store.correlations, "C1")
	require.Zero(t, sender.calls())
}
