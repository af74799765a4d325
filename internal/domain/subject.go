package domain

// DispatchStatus tracks whether the initial notification has gone out for a
// subject. The upstream table stores it as a plain string; anything other
// than "Sent" counts as not yet dispatched.
type DispatchStatus string

const (
	StatusNotSent DispatchStatus = "NotSent"
	StatusSent    DispatchStatus = "Sent"
)

// Subject is one row of the upstream notifications table.
type Subject struct {
	ID     string
	Phone  string
	Locale string
	Status DispatchStatus
}

// Dispatched reports whether the initial notification was already sent.
func (s Subject) Dispatched() bool {
	return s.Status == StatusSent
}
