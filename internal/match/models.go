// Package match holds the records that flow from the scrapers to the UI.
package match

import "time"

// MatchSummary is one row of the homepage listing.
type MatchSummary struct {
	Title     string `json:"title"`
	ScoreText string `json:"score_text"`
	DetailURL string `json:"detail_url,omitempty"`
}

// Selectable reports whether the summary links to a detail page.
func (m MatchSummary) Selectable() bool {
	return m.DetailURL != ""
}

// PlayerBattingLine is one batter row. Name carries a trailing "*" when the
// batter is at the crease.
type PlayerBattingLine struct {
	Name       string `json:"name"`
	Runs       string `json:"runs"`
	Balls      string `json:"balls"`
	Fours      string `json:"fours"`
	Sixes      string `json:"sixes"`
	StrikeRate string `json:"strike_rate"`
}

// PlayerBowlingLine is one bowler row. Name carries a trailing "*" for the
// bowler currently in the attack.
type PlayerBowlingLine struct {
	Name    string `json:"name"`
	Overs   string `json:"overs"`
	Maidens string `json:"maidens"`
	Runs    string `json:"runs"`
	Wickets string `json:"wickets"`
	Economy string `json:"economy"`
}

// MatchDetail is the extracted state of a single match page.
// Pointer fields are nil when the page did not carry the value.
type MatchDetail struct {
	DetailURL     string              `json:"detail_url"`
	FetchedAt     time.Time           `json:"fetched_at"`
	Title         string              `json:"title"`
	PrimaryScore  string              `json:"primary_score"`
	OpponentScore *string             `json:"opponent_score,omitempty"`
	Status        string              `json:"status"`
	IsComplete    bool                `json:"is_complete"`
	PlayerOfMatch *string             `json:"player_of_match,omitempty"`
	Team1Name     *string             `json:"team1_name,omitempty"`
	Team2Name     *string             `json:"team2_name,omitempty"`
	Batters       []PlayerBattingLine `json:"batters"`
	Bowlers       []PlayerBowlingLine `json:"bowlers"`
	Partnership   string              `json:"partnership,omitempty"`
	LastWicket    string              `json:"last_wicket,omitempty"`
	RecentOvers   string              `json:"recent_overs,omitempty"`
	Toss          string              `json:"toss,omitempty"`
}

// HasMatchData reports whether anything beyond the title was extracted. Team
// names are derived from headings and do not count.
func (d MatchDetail) HasMatchData() bool {
	return d.PrimaryScore != "" ||
		d.OpponentScore != nil ||
		d.Status != "" ||
		len(d.Batters) > 0 ||
		len(d.Bowlers) > 0 ||
		d.Partnership != "" ||
		d.LastWicket != "" ||
		d.RecentOvers != "" ||
		d.Toss != ""
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or fallback when p is nil.
func Deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
