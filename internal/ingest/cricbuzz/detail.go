package cricbuzz

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/crease/internal/match"
)

// ErrNoMatchData is returned when a detail page yields nothing beyond an
// optional title.
var ErrNoMatchData = errors.New("no match data found on page")

const maxDetailTitleLen = 150

var completionKeywords = []string{"won by", "draw", "tied", "no result"}

var statusSelectors = []string{
	".cb-min-stts",
	".cb-text-live",
	".cb-text-inprogress",
	".cb-text-complete",
	".cb-text-stumps",
	".cb-text-lunch",
	".cb-text-tea",
	".cb-text-inningsbreak",
	".cb-text-delay",
	".cb-toss-sts",
	".cb-text-preview",
}

// scoreStrategy yields the score blocks a page shows, one per side.
type scoreStrategy struct {
	name   string
	blocks func(doc *goquery.Document) []string
}

var scoreStrategies = []scoreStrategy{
	{name: "scores-wrapper", blocks: selectBlocks("div.cb-scrs-wrp div.cb-min-tm")},
	{name: "mini-batting", blocks: selectBlocks(".cb-min-bat-rw .cb-font-20")},
	{name: "scores-heading", blocks: selectBlocks("div.cb-scrs-wrp h2, div.cb-scrs-wrp .cb-font-20")},
}

func selectBlocks(selector string) func(doc *goquery.Document) []string {
	return func(doc *goquery.Document) []string {
		var blocks []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := textWithSeparator(s, " "); text != "" {
				blocks = append(blocks, text)
			}
		})
		return blocks
	}
}

// playerSection is a header plus the rows beneath it.
type playerSection struct {
	header string
	rows   *goquery.Selection
	// fractionalOversMarksBowler is set where the page only shows the
	// current spell, so an unfinished over identifies the active bowler.
	fractionalOversMarksBowler bool
}

type playerStrategy struct {
	name     string
	sections func(doc *goquery.Document) []playerSection
}

var playerStrategies = []playerStrategy{
	{name: "mini-scorecard", sections: miniScorecardSections},
	{name: "full-scorecard", sections: fullScorecardSections},
}

func miniScorecardSections(doc *goquery.Document) []playerSection {
	var sections []playerSection
	doc.Find(".cb-min-inf").Each(func(_ int, s *goquery.Selection) {
		sections = append(sections, playerSection{
			header:                     cleanText(s.Find(".cb-min-hdr-rw").First()),
			rows:                       s.Find(".cb-min-itm-rw"),
			fractionalOversMarksBowler: true,
		})
	})
	return sections
}

func fullScorecardSections(doc *goquery.Document) []playerSection {
	var sections []playerSection
	doc.Find(".cb-scrd-sub-hdr").Each(func(_ int, s *goquery.Selection) {
		sections = append(sections, playerSection{
			header: cleanText(s),
			rows:   s.NextUntil(".cb-scrd-sub-hdr").Filter(".cb-scrd-itms"),
		})
	})
	return sections
}

// DetailExtractor turns a match page into a MatchDetail. Every field group
// has its own fallback chain, so a miss in one never blocks the others.
type DetailExtractor struct {
	logger  *slog.Logger
	observe StrategyObserver
}

// NewDetailExtractor creates a DetailExtractor.
func NewDetailExtractor(logger *slog.Logger, observe StrategyObserver) *DetailExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailExtractor{logger: logger, observe: observe}
}

// Extract parses markup. It returns ErrNoMatchData, along with whatever title
// was found, when no match field could be extracted.
func (e *DetailExtractor) Extract(markup string) (match.MatchDetail, error) {
	var detail match.MatchDetail

	doc, err := ParseHTML(markup)
	if err != nil {
		return detail, err
	}

	detail.Title = e.extractTitle(doc)

	team1, team2 := e.extractTeams(doc, detail.Title)
	detail.Team1Name = match.StringPtr(team1)
	detail.Team2Name = match.StringPtr(team2)

	detail.Status = e.extractStatus(doc)
	e.extractScores(doc, &detail, team1, team2)

	if detail.IsComplete {
		detail.PlayerOfMatch = match.StringPtr(e.extractPlayerOfMatch(doc))
	}

	detail.Batters = e.extractBatters(doc)
	detail.Bowlers = e.extractBowlers(doc)
	e.extractKeyStats(doc, &detail)

	if !detail.HasMatchData() {
		return detail, ErrNoMatchData
	}
	return detail, nil
}

func (e *DetailExtractor) hit(field, strategy string) {
	if strategy == "" {
		e.logger.Debug("detail field not found", "field", field)
		strategy = "none"
	}
	if e.observe != nil {
		e.observe(field, strategy)
	}
}

func (e *DetailExtractor) extractTitle(doc *goquery.Document) string {
	if title, sel := firstText(doc.Selection, "h1.cb-nav-hdr", "div.cb-nav-main h1"); title != "" {
		e.hit("title", sel)
		return truncateRunes(title, maxDetailTitleLen)
	}

	raw := doc.Find("title").First().Text()
	if i := strings.Index(raw, "|"); i >= 0 {
		raw = raw[:i]
	}
	if title := collapseWhitespace(raw); title != "" {
		e.hit("title", "document-title")
		return truncateRunes(title, maxDetailTitleLen)
	}

	e.hit("title", "")
	return ""
}

func (e *DetailExtractor) extractTeams(doc *goquery.Document, title string) (string, string) {
	if team1, team2, ok := match.ParseTeams(title); ok {
		e.hit("teams", "heading")
		return team1, team2
	}
	sources := []struct {
		name string
		text string
	}{
		{"subheader", cleanText(doc.Find(".cb-nav-subhdr").First())},
		{"document-title", collapseWhitespace(doc.Find("title").First().Text())},
	}
	for _, src := range sources {
		if team1, team2, ok := match.ParseTeams(src.text); ok {
			e.hit("teams", src.name)
			return team1, team2
		}
	}
	e.hit("teams", "")
	return "", ""
}

func (e *DetailExtractor) extractStatus(doc *goquery.Document) string {
	status, sel := firstText(doc.Selection, statusSelectors...)
	e.hit("status", sel)
	return status
}

func (e *DetailExtractor) extractScores(doc *goquery.Document, detail *match.MatchDetail, team1, team2 string) {
	var blocks []string
	for _, strategy := range scoreStrategies {
		if blocks = strategy.blocks(doc); len(blocks) > 0 {
			e.hit("score", strategy.name)
			break
		}
	}

	switch {
	case len(blocks) >= 2:
		primary, opponent := pickPrimary(blocks[0], blocks[1], team1, team2)
		detail.PrimaryScore = primary
		detail.OpponentScore = match.StringPtr(opponent)
		// Two innings on show is either a finished match or an innings break.
		detail.IsComplete = isCompletionStatus(detail.Status)
	case len(blocks) == 1:
		detail.PrimaryScore = blocks[0]
		detail.IsComplete = false
		if opponent, _ := firstText(doc.Selection, "div.cb-scrs-wrp div.cb-text-gray", "div.cb-scrs-wrp .cb-text-gray"); opponent != "" && opponent != blocks[0] {
			detail.OpponentScore = &opponent
		}
	default:
		e.hit("score", "")
		detail.IsComplete = isCompletionStatus(detail.Status)
	}
}

// pickPrimary puts team1's score first. A block naming team2 makes the other
// block primary; with no names to go on the page order is kept.
func pickPrimary(first, second, team1, team2 string) (string, string) {
	if team1 != "" {
		if mentionsTeam(first, team1) {
			return first, second
		}
		if mentionsTeam(second, team1) {
			return second, first
		}
	}
	if team2 != "" {
		if mentionsTeam(first, team2) {
			return second, first
		}
		if mentionsTeam(second, team2) {
			return first, second
		}
	}
	return first, second
}

func mentionsTeam(block, team string) bool {
	if strings.Contains(strings.ToLower(block), strings.ToLower(team)) {
		return true
	}
	abbr := match.Abbreviate(team)
	if abbr == "" {
		return false
	}
	for _, token := range strings.Fields(block) {
		if strings.Trim(token, ".,:;()-") == abbr {
			return true
		}
	}
	return false
}

func isCompletionStatus(status string) bool {
	lower := strings.ToLower(status)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *DetailExtractor) extractPlayerOfMatch(doc *goquery.Document) string {
	var player string
	doc.Find("div.cb-mom-itm").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToUpper(cleanText(s.Find("span.cb-text-gray")))
		if !strings.Contains(label, "PLAYER OF THE MATCH") {
			return true
		}
		link := s.Find("a.cb-link-undrln").First()
		if link.Length() == 0 {
			link = s.Find("a").First()
		}
		player = cleanText(link)
		return player == ""
	})
	if player != "" {
		e.hit("player_of_match", "mom-item")
	} else {
		e.hit("player_of_match", "")
	}
	return player
}

// findSection returns the rows of the last section whose header contains one
// of the keywords. The last one is the innings in progress on scorecards
// that list several.
func findSection(sections []playerSection, keywords ...string) (playerSection, bool) {
	var found playerSection
	ok := false
	for _, section := range sections {
		header := strings.ToLower(section.header)
		for _, kw := range keywords {
			if strings.Contains(header, kw) {
				found, ok = section, true
				break
			}
		}
	}
	return found, ok
}

func (e *DetailExtractor) extractBatters(doc *goquery.Document) []match.PlayerBattingLine {
	for _, strategy := range playerStrategies {
		section, ok := findSection(strategy.sections(doc), "batter", "batsman", "batting")
		if !ok {
			continue
		}
		var lines []match.PlayerBattingLine
		section.rows.Each(func(_ int, row *goquery.Selection) {
			if line, ok := parseBattingRow(row); ok {
				lines = append(lines, line)
			}
		})
		if len(lines) > 0 {
			e.hit("batters", strategy.name)
			return lines
		}
	}
	e.hit("batters", "")
	return []match.PlayerBattingLine{}
}

func (e *DetailExtractor) extractBowlers(doc *goquery.Document) []match.PlayerBowlingLine {
	for _, strategy := range playerStrategies {
		section, ok := findSection(strategy.sections(doc), "bowler", "bowling")
		if !ok {
			continue
		}
		var lines []match.PlayerBowlingLine
		section.rows.Each(func(_ int, row *goquery.Selection) {
			if line, ok := parseBowlingRow(row, section.fractionalOversMarksBowler); ok {
				lines = append(lines, line)
			}
		})
		if len(lines) > 0 {
			e.hit("bowlers", strategy.name)
			return lines
		}
	}
	e.hit("bowlers", "")
	return []match.PlayerBowlingLine{}
}

const minPlayerColumns = 6

// playerName reads the linked name in the first column. Rows without a
// player link are totals, extras or headers.
func playerName(cols *goquery.Selection) (name string, starred bool, ok bool) {
	first := cols.Eq(0)
	link := first.Find("a").First()
	if link.Length() == 0 {
		return "", false, false
	}
	name = strings.TrimSpace(strings.TrimSuffix(cleanText(link), "*"))
	if name == "" {
		return "", false, false
	}
	return name, strings.Contains(first.Text(), "*"), true
}

func parseBattingRow(row *goquery.Selection) (match.PlayerBattingLine, bool) {
	cols := row.ChildrenFiltered("div")
	n := cols.Length()
	if n < minPlayerColumns {
		return match.PlayerBattingLine{}, false
	}
	name, starred, ok := playerName(cols)
	if !ok {
		return match.PlayerBattingLine{}, false
	}
	if starred {
		name += "*"
	}
	// Full scorecards add a dismissal column after the name; the figures are
	// always the last five columns.
	return match.PlayerBattingLine{
		Name:       name,
		Runs:       cleanText(cols.Eq(n - 5)),
		Balls:      cleanText(cols.Eq(n - 4)),
		Fours:      cleanText(cols.Eq(n - 3)),
		Sixes:      cleanText(cols.Eq(n - 2)),
		StrikeRate: cleanText(cols.Eq(n - 1)),
	}, true
}

func parseBowlingRow(row *goquery.Selection, fractionalMarks bool) (match.PlayerBowlingLine, bool) {
	cols := row.ChildrenFiltered("div")
	n := cols.Length()
	if n < minPlayerColumns {
		return match.PlayerBowlingLine{}, false
	}
	name, starred, ok := playerName(cols)
	if !ok {
		return match.PlayerBowlingLine{}, false
	}
	overs := cleanText(cols.Eq(1))
	if starred || (fractionalMarks && isPartialOver(overs)) {
		name += "*"
	}
	// Full scorecards put no-balls and wides before economy, which is always last.
	return match.PlayerBowlingLine{
		Name:    name,
		Overs:   overs,
		Maidens: cleanText(cols.Eq(2)),
		Runs:    cleanText(cols.Eq(3)),
		Wickets: cleanText(cols.Eq(4)),
		Economy: cleanText(cols.Eq(n - 1)),
	}, true
}

func isPartialOver(overs string) bool {
	i := strings.Index(overs, ".")
	return i >= 0 && strings.Trim(overs[i+1:], "0") != ""
}

func (e *DetailExtractor) extractKeyStats(doc *goquery.Document, detail *match.MatchDetail) {
	doc.Find(".cb-key-st-lst .cb-min-itm-rw").Each(func(_ int, row *goquery.Selection) {
		labelSel := row.Find("span.text-bold").First()
		label := strings.ToLower(strings.TrimSuffix(cleanText(labelSel), ":"))
		spans := row.Find("span")
		if spans.Length() < 2 {
			return
		}
		value := cleanText(spans.Last())
		if value == "" {
			return
		}
		switch {
		case strings.HasPrefix(label, "partnership"):
			detail.Partnership = value
		case strings.HasPrefix(label, "last wkt"), strings.HasPrefix(label, "last wicket"):
			detail.LastWicket = value
		case strings.HasPrefix(label, "toss"):
			detail.Toss = value
		}
	})
	if detail.Partnership != "" || detail.LastWicket != "" {
		e.hit("key_stats", "key-stats-list")
	} else {
		e.hit("key_stats", "")
	}

	if detail.Toss == "" {
		doc.Find(".cb-mtch-info-itm").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			if strings.Contains(strings.ToLower(cleanText(row.Find(".cb-col-27"))), "toss") {
				detail.Toss = cleanText(row.Find(".cb-col-73"))
			}
			return detail.Toss == ""
		})
	}
	if detail.Toss == "" {
		lower := strings.ToLower(detail.Status)
		if strings.Contains(lower, "opt to") || strings.Contains(lower, "elected to") {
			detail.Toss = detail.Status
		}
	}

	if recent := cleanText(doc.Find(".cb-min-rcnt").First()); recent != "" {
		if strings.HasPrefix(strings.ToLower(recent), "recent:") {
			recent = strings.TrimSpace(recent[len("recent:"):])
		}
		detail.RecentOvers = recent
		e.hit("recent_overs", "recent-strip")
	} else {
		e.hit("recent_overs", "")
	}
}
