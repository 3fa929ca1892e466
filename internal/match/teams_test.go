package match

import "testing"

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"exact nation", "India", "IND"},
		{"exact franchise", "Chennai Super Kings", "CSK"},
		{"case insensitive", "  new zealand ", "NZ"},
		{"already abbreviated", "aus", "AUS"},
		{"contains known team", "India Women", "IND"},
		{"longest key wins", "West Indies Masters", "WI"},
		{"initials fallback", "Papua New Guinea", "PNG"},
		{"first three letters", "Nepal", "NEP"},
		{"lowercase single word", "oman", "OMA"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Abbreviate(tt.input); got != tt.expected {
				t.Errorf("Abbreviate(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLookupAbbreviationWordBoundary(t *testing.T) {
	if abbr, ok := LookupAbbreviation("Indiana Hoosiers"); ok {
		t.Errorf("expected no match for Indiana Hoosiers, got %q", abbr)
	}
}

func TestParseTeams(t *testing.T) {
	tests := []struct {
		title string
		team1 string
		team2 string
		ok    bool
	}{
		{"India vs Australia, 3rd T20I", "India", "Australia", true},
		{"England v South Africa", "England", "South Africa", true},
		{"Mumbai Indians vs Chennai Super Kings, 12th Match - Live Cricket Score, Commentary", "Mumbai Indians", "Chennai Super Kings", true},
		{"Pakistan vs Sri Lanka - 2nd Test | Cricbuzz.com", "Pakistan", "Sri Lanka", true},
		{"Live Cricket Scores", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			team1, team2, ok := ParseTeams(tt.title)
			if ok != tt.ok || team1 != tt.team1 || team2 != tt.team2 {
				t.Errorf("ParseTeams(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.title, team1, team2, ok, tt.team1, tt.team2, tt.ok)
			}
		})
	}
}

func TestShortenTitle(t *testing.T) {
	got := ShortenTitle("India vs Australia, 3rd T20I - Live Cricket Score, Commentary")
	want := "IND vs AUS, 3rd T20I"
	if got != want {
		t.Errorf("ShortenTitle() = %q, want %q", got, want)
	}
}

func TestHasMatchData(t *testing.T) {
	d := MatchDetail{Title: "India vs Australia"}
	if d.HasMatchData() {
		t.Error("title alone should not count as match data")
	}

	d.Team1Name, d.Team2Name = StringPtr("India"), StringPtr("Australia")
	if d.HasMatchData() {
		t.Error("team names alone should not count as match data")
	}

	d.Status = "India won by 5 wkts"
	if !d.HasMatchData() {
		t.Error("status should count as match data")
	}
}

func TestSelectable(t *testing.T) {
	if (MatchSummary{Title: "x"}).Selectable() {
		t.Error("summary without URL should not be selectable")
	}
	if !(MatchSummary{Title: "x", DetailURL: "https://www.cricbuzz.com/live-cricket-scores/1"}).Selectable() {
		t.Error("summary with URL should be selectable")
	}
}
