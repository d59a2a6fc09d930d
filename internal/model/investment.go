package model

// InvestmentOutcome is the server's verdict on one submitted order.
// RemainingBalanceCLP is nil when the server did not report one.
type InvestmentOutcome struct {
	Accepted            bool
	RemainingBalanceCLP *int64
	Message             string
}

// BalanceUpdate is the authoritative balance returned by the account
// endpoints (deposit, withdraw, balance query).
type BalanceUpdate struct {
	UserID     int64
	Name       string
	BalanceCLP int64
	Message    string
}

// Report is a generated portfolio export. DownloadLink is set instead of
// FileBytes when the file was too large to send directly.
type Report struct {
	FileBytes    []byte
	Filename     string
	DownloadLink string
}
