package domain

// ScoreUncaptured is the placeholder stored for a survey stage whose reply
// has not arrived yet.
const ScoreUncaptured = "Not captured"

// CorrelationEntry binds a transport-issued message id to the conversation
// stage the next inbound reply belongs to. A message id is written once and
// consumed at most once; it is never reused across stages.
type CorrelationEntry struct {
	MessageID string
	SubjectID string
	Stage     int
}

// ResponseRecord accumulates survey answers for one subject. Scores is
// indexed by stage (1-based); each slot starts Uncaptured and is written at
// most once.
type ResponseRecord struct {
	SubjectID   string
	Destination string
	Scores      []string
	CreatedAt   int64
}

// ReplyEvent is one inbound SMS reply as delivered by the transport.
// MessageID is the correlation id of the outbound message being replied to.
// Delivery is at-least-once and unordered.
type ReplyEvent struct {
	MessageID   string
	Origination string
	Body        string
}
