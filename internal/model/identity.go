package model

// Identity is the locally cached view of the authoritative user record.
// BalanceCLP mirrors the last balance observed from the backend (login,
// portfolio fetch or accepted investment) and is never derived locally.
type Identity struct {
	ID         int64
	Name       string
	BalanceCLP int64
}
