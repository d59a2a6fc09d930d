package model

// PortfolioSnapshot is a read-only projection computed server-side.
// The client never builds one locally, it only re-derives the cached
// identity balance from AvailableBalanceCLP.
type PortfolioSnapshot struct {
	OwnerID                int64
	AvailableBalanceCLP    int64
	TotalInvestedCLP       int64
	TotalCurrentValueCLP   int64
	TotalProfitLossCLP     int64
	TotalProfitLossPercent float64
	Positions              []ActivePosition
}

type ActivePosition struct {
	TrackerID         int64
	TrackerName       string
	InvestedCLP       int64
	CurrentValueCLP   int64
	ProfitLossCLP     int64
	ProfitLossPercent float64
}
