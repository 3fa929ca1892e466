// Package format renders match data into the short strings shown by the tray
// widget. Every function here is pure and total.
package format

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fortuna/crease/internal/match"
)

const (
	// DefaultTooltipItems is how many matches the tooltip lists
	DefaultTooltipItems = 3

	// DefaultTooltipLength fits the platform tooltip limit
	DefaultTooltipLength = 250

	// TooltipFieldLength caps each title and score before joining
	TooltipFieldLength = 60

	// FetchingPlaceholder is shown before the first listing arrives
	FetchingPlaceholder = "Fetching matches..."

	missing  = "N/A"
	ellipsis = "..."
)

var (
	runsWicketsPattern = regexp.MustCompile(`\b(\d{1,3})\s*[/-]\s*(\d{1,2})\b`)
	oversPattern       = regexp.MustCompile(`(?i)\(\s*(\d{1,3}(?:\.\d)?)\s*(?:ovs?|overs?)?\s*\)`)
	runRatePattern     = regexp.MustCompile(`(?i)\bCRR\s*:?\s*(\d+(?:\.\d+)?)`)

	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:opt|opted|elected|elect)\s+to\s+(?:bowl|bat|field)(?:\s+first)?\b`),
		regexp.MustCompile(`(?i)\bwon\s+the\s+toss\b.*$`),
		regexp.MustCompile(`(?i)\b(?:need|needs|require|requires)\s+\d+\s+runs?\b.*$`),
		regexp.MustCompile(`(?i)\btrail\s+by\s+\d+\s+runs?\b.*$`),
		regexp.MustCompile(`(?i)\blead\s+by\s+\d+\s+runs?\b.*$`),
	}
)

// Ellipsize cuts s to at most n runes, marking the cut with "...". When n
// leaves no room for the marker the string is cut hard.
func Ellipsize(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= len(ellipsis) {
		return string(r[:n])
	}
	return string(r[:n-len(ellipsis)]) + ellipsis
}

// FormatTooltip lists up to maxItems matches as "title: score" lines and
// keeps the result within maxLen runes.
func FormatTooltip(summaries []match.MatchSummary, maxItems, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxItems <= 0 {
		maxItems = DefaultTooltipItems
	}
	if len(summaries) == 0 {
		return Ellipsize(FetchingPlaceholder, maxLen)
	}

	lines := make([]string, 0, maxItems)
	for i, s := range summaries {
		if i == maxItems {
			break
		}
		title := orMissing(s.Title)
		score := orMissing(s.ScoreText)
		lines = append(lines, Ellipsize(title, TooltipFieldLength)+": "+Ellipsize(score, TooltipFieldLength))
	}
	return Ellipsize(strings.Join(lines, "\n"), maxLen)
}

// FormatMinimized compresses a score into "ABBR runs/wkts (overs) CRR: rate",
// keeping whichever of the overs and run-rate parts the score carries. A score
// without a runs/wickets pair is cleaned of toss and chase chatter instead.
func FormatMinimized(title, score string) string {
	team := battingTeam(title)
	abbr := match.Abbreviate(team)
	score = strings.Join(strings.Fields(score), " ")

	if m := runsWicketsPattern.FindStringSubmatch(score); m != nil {
		parts := make([]string, 0, 4)
		if abbr != "" {
			parts = append(parts, abbr)
		}
		parts = append(parts, m[1]+"/"+m[2])
		if o := oversPattern.FindStringSubmatch(score); o != nil {
			parts = append(parts, "("+o[1]+")")
		}
		if rr := runRatePattern.FindStringSubmatch(score); rr != nil {
			parts = append(parts, "CRR: "+rr[1])
		}
		return strings.Join(parts, " ")
	}

	cleaned := stripNoise(score)
	if team != "" && len(cleaned) >= len(team) && strings.EqualFold(cleaned[:len(team)], team) {
		cleaned = strings.TrimSpace(cleaned[len(team):])
	}
	switch {
	case cleaned == "" && abbr == "":
		return missing
	case cleaned == "":
		return abbr
	case abbr == "" || strings.HasPrefix(cleaned, abbr+" ") || cleaned == abbr:
		return cleaned
	default:
		return abbr + " " + cleaned
	}
}

// FormatDetail renders a match as the multi-line text the popup shows.
func FormatDetail(d match.MatchDetail) string {
	var b strings.Builder

	title := match.ShortenTitle(d.Title)
	if title == "" {
		title = missing
	}
	b.WriteString(title)
	b.WriteString("\n")

	if d.PrimaryScore != "" {
		b.WriteString(d.PrimaryScore)
		if d.OpponentScore != nil {
			b.WriteString(" | ")
			b.WriteString(*d.OpponentScore)
		}
		b.WriteString("\n")
	}
	if d.Status != "" {
		b.WriteString(d.Status)
		b.WriteString("\n")
	}

	if len(d.Batters) > 0 {
		b.WriteString("\nBatting\n")
		for _, p := range d.Batters {
			fmt.Fprintf(&b, "  %s %s (%s) 4s:%s 6s:%s SR:%s\n", p.Name, p.Runs, p.Balls, p.Fours, p.Sixes, p.StrikeRate)
		}
	}
	if len(d.Bowlers) > 0 {
		b.WriteString("\nBowling\n")
		for _, p := range d.Bowlers {
			fmt.Fprintf(&b, "  %s %s-%s-%s-%s Econ:%s\n", p.Name, p.Overs, p.Maidens, p.Runs, p.Wickets, p.Economy)
		}
	}

	extras := []struct{ label, value string }{
		{"Player of the Match", match.Deref(d.PlayerOfMatch, "")},
		{"Partnership", d.Partnership},
		{"Last Wkt", d.LastWicket},
		{"Recent", d.RecentOvers},
		{"Toss", d.Toss},
	}
	first := true
	for _, e := range extras {
		if e.value == "" {
			continue
		}
		if first {
			b.WriteString("\n")
			first = false
		}
		fmt.Fprintf(&b, "%s: %s\n", e.label, e.value)
	}

	return strings.TrimRight(b.String(), "\n")
}

// battingTeam is the first team named in a title, or the title itself when
// it names no opponent.
func battingTeam(title string) string {
	if team1, _, ok := match.ParseTeams(title); ok {
		return team1
	}
	t := match.StripTitleNoise(title)
	if i := strings.Index(t, ","); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

func stripNoise(score string) string {
	for _, p := range noisePatterns {
		score = p.ReplaceAllString(score, "")
	}
	return strings.Trim(strings.Join(strings.Fields(score), " "), " ,;:-|")
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missing
	}
	return s
}
