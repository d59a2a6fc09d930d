package model

// Tracker is a followable investor/fund snapshot. Fetched per view,
// never cached across views.
type Tracker struct {
	ID               int64
	Name             string
	Kind             string // "fund" or "politician"
	Description      string
	AvatarURL        string
	YTDReturn        float64
	RiskLevel        string // "low", "medium", "high"
	AverageDelayDays int
	FollowersCount   int
}

// Holding is one constituent position inside a tracker's disclosed portfolio.
type Holding struct {
	ID                int64
	TrackerID         int64
	Ticker            string
	CompanyName       string
	AllocationPercent float64
}
