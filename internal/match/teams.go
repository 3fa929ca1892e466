package match

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// TeamNameToAbbreviation maps lower-cased team names to their short codes.
var TeamNameToAbbreviation = map[string]string{
	"punjab kings":                "PBKS",
	"lucknow super giants":        "LSG",
	"gujarat titans":              "GT",
	"rajasthan royals":            "RR",
	"royal challengers bengaluru": "RCB",
	"royal challengers bangalore": "RCB",
	"sunrisers hyderabad":         "SRH",
	"kolkata knight riders":       "KKR",
	"delhi capitals":              "DC",
	"chennai super kings":         "CSK",
	"mumbai indians":              "MI",
	"india":                       "IND",
	"australia":                   "AUS",
	"england":                     "ENG",
	"south africa":                "SA",
	"new zealand":                 "NZ",
	"pakistan":                    "PAK",
	"sri lanka":                   "SL",
	"west indies":                 "WI",
	"bangladesh":                  "BAN",
	"afghanistan":                 "AFG",
	"ireland":                     "IRE",
	"zimbabwe":                    "ZIM",
}

// teamKeysLongestFirst keeps partial matching deterministic: "west indies"
// must win over any shorter key it contains.
var teamKeysLongestFirst = func() []string {
	keys := make([]string, 0, len(TeamNameToAbbreviation))
	for k := range TeamNameToAbbreviation {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var knownAbbreviations = func() map[string]bool {
	m := make(map[string]bool, len(TeamNameToAbbreviation))
	for _, abbr := range TeamNameToAbbreviation {
		m[abbr] = true
	}
	return m
}()

var (
	vsPattern         = regexp.MustCompile(`(?i)^\s*(.+?)\s+vs?\.?\s+(.+?)\s*(?:,|$)`)
	titleNoisePattern = regexp.MustCompile(`(?i)\s*[-|]\s*(live cricket score.*|cricbuzz(\.com)?.*|commentary.*)$`)
)

// LookupAbbreviation resolves a team name through the table. Exact names win
// over names that merely contain a known team ("India A" resolves to IND).
func LookupAbbreviation(teamName string) (string, bool) {
	nameLower := strings.ToLower(strings.TrimSpace(teamName))
	if nameLower == "" {
		return "", false
	}

	if abbr, ok := TeamNameToAbbreviation[nameLower]; ok {
		return abbr, true
	}
	if upper := strings.ToUpper(nameLower); knownAbbreviations[upper] {
		return upper, true
	}

	for _, key := range teamKeysLongestFirst {
		if containsWord(nameLower, key) {
			return TeamNameToAbbreviation[key], true
		}
	}
	return "", false
}

// Abbreviate returns the table code for a team, falling back to the initials
// of its capitalized words, then to its first three letters upper-cased.
func Abbreviate(teamName string) string {
	if abbr, ok := LookupAbbreviation(teamName); ok {
		return abbr
	}

	var initials []rune
	for _, word := range strings.Fields(teamName) {
		r := []rune(word)
		if unicode.IsUpper(r[0]) {
			initials = append(initials, r[0])
		}
	}
	if len(initials) >= 2 {
		return string(initials)
	}

	var letters []rune
	for _, r := range teamName {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 3 {
				break
			}
		}
	}
	return string(letters)
}

// ParseTeams splits a "Team A vs Team B, 3rd T20I" style title into its two
// team names.
func ParseTeams(title string) (team1, team2 string, ok bool) {
	m := vsPattern.FindStringSubmatch(StripTitleNoise(title))
	if m == nil {
		return "", "", false
	}
	team1 = strings.TrimSpace(m[1])
	team2 = strings.TrimSpace(m[2])
	if i := strings.Index(team2, " - "); i >= 0 {
		team2 = strings.TrimSpace(team2[:i])
	}
	if team1 == "" || team2 == "" {
		return "", "", false
	}
	return team1, team2, true
}

// StripTitleNoise drops site branding such as "- Live Cricket Score, Commentary"
// or "| Cricbuzz.com" from a page title.
func StripTitleNoise(title string) string {
	return strings.TrimSpace(titleNoisePattern.ReplaceAllString(strings.TrimSpace(title), ""))
}

// ShortenTitle strips branding and replaces known team names with their codes.
func ShortenTitle(title string) string {
	out := StripTitleNoise(title)
	lower := strings.ToLower(out)
	if len(lower) != len(out) {
		return out
	}
	for _, key := range teamKeysLongestFirst {
		for {
			i := indexWord(lower, key)
			if i < 0 {
				break
			}
			abbr := TeamNameToAbbreviation[key]
			out = out[:i] + abbr + out[i+len(key):]
			lower = lower[:i] + strings.ToLower(abbr) + lower[i+len(key):]
		}
	}
	return out
}

func containsWord(s, word string) bool {
	return indexWord(s, word) >= 0
}

// indexWord finds word in s on word boundaries, so "india" does not match
// inside "indian".
func indexWord(s, word string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(word)
		if isBoundary(s, start-1) && isBoundary(s, end) {
			return start
		}
		offset = start + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
