package match

import "time"

// Failure kinds reported alongside FetchError kinds.
const (
	FailureExtraction = "extraction"
)

// FetchFailure tells the UI that a poll cycle produced nothing. The previous
// listing or detail stays valid.
type FetchFailure struct {
	Loop    string    `json:"loop"`
	URL     string    `json:"url"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
