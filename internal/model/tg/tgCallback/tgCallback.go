package tgCallback

// Callback button uniques
const (
	TrackerDetails string = "tracker_details" // open one tracker from the list
	Invest         string = "invest"          // start the investment dialog for a tracker
	BackToTrackers string = "back_to_trackers"
)
