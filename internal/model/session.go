package model

// State is the dialog step the chat is waiting on.
type State int

const (
	DefaultState State = iota
	ExpectingLoginID
	ExpectingInvestAmount
	ExpectingDepositAmount
	ExpectingWithdrawAmount
)

// Session holds per-chat dialog state between updates.
type Session struct {
	State       State
	TrackerID   int64
	TrackerName string
}
