package domain

// CancelState is the outcome of a cancellation check.
// It separates "confirmed not canceled" from "could not tell".
type CancelState string

const (
	CancelStateUnknown     CancelState = "unknown"
	CancelStateNotCanceled CancelState = "not_canceled"
	CancelStateCanceled    CancelState = "canceled"
)

// Canceled collapses the state to the boolean contract: only a confirmed
// cancellation is true.
func (s CancelState) Canceled() bool {
	return s == CancelStateCanceled
}
