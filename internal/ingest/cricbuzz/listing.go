package cricbuzz

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/crease/internal/match"
)

const (
	// DetailPathPrefix is the path every match detail page lives under
	DetailPathPrefix = "/live-cricket-scores/"

	// DefaultMaxMatches caps the listing
	DefaultMaxMatches = 10

	maxSummaryFieldLen = 100
)

// listingStrategy names a container selector. Matches are looked for inside
// every container it selects.
type listingStrategy struct {
	name       string
	containers string
}

// Tried in order; the first one that yields at least one match wins.
var listingStrategies = []listingStrategy{
	{name: "carousel", containers: "ul.cb-mtch-crd-rt-itm"},
	{name: "card", containers: "div.cb-mtch-crd-rt-itm"},
	{name: "match-card", containers: `li[class*="cb-match-card"]`},
	{name: "live-list", containers: "div.cb-mtch-lst"},
}

var listingScoreSelectors = []string{
	`div[class*="cb-text-live"]`,
	`div[class*="cb-text-complete"]`,
	`span[class*="cb-text-preview"]`,
	`div[class*="cb-text-preview"]`,
}

// StrategyObserver is told which strategy produced a field.
type StrategyObserver func(field, strategy string)

// ListingExtractor turns homepage markup into match summaries.
type ListingExtractor struct {
	origin     *url.URL
	maxMatches int
	logger     *slog.Logger
	observe    StrategyObserver
}

// NewListingExtractor creates an extractor resolving links against origin.
func NewListingExtractor(origin string, maxMatches int, logger *slog.Logger, observe StrategyObserver) (*ListingExtractor, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingExtractor{origin: u, maxMatches: maxMatches, logger: logger, observe: observe}, nil
}

// Extract never fails: unrecognised markup yields an empty listing and a
// warning naming every strategy tried.
func (e *ListingExtractor) Extract(markup string) []match.MatchSummary {
	doc, err := ParseHTML(markup)
	if err != nil {
		e.logger.Warn("listing markup unparseable", "error", err)
		return []match.MatchSummary{}
	}

	tried := make([]string, 0, len(listingStrategies))
	for _, strategy := range listingStrategies {
		tried = append(tried, strategy.name)
		summaries := e.extractWith(doc, strategy)
		if len(summaries) > 0 {
			e.logger.Debug("listing extracted", "strategy", strategy.name, "matches", len(summaries))
			if e.observe != nil {
				e.observe("listing", strategy.name)
			}
			return summaries
		}
	}

	e.logger.Warn("no matches found in listing", "strategies", strings.Join(tried, ","))
	if e.observe != nil {
		e.observe("listing", "none")
	}
	return []match.MatchSummary{}
}

func (e *ListingExtractor) extractWith(doc *goquery.Document, strategy listingStrategy) []match.MatchSummary {
	var summaries []match.MatchSummary
	index := make(map[string]int)

	doc.Find(strategy.containers).EachWithBreak(func(_ int, container *goquery.Selection) bool {
		containerScore := e.containerScore(container)

		container.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			detailURL, ok := e.resolveDetailURL(a.AttrOr("href", ""))
			if !ok {
				return true
			}

			title := collapseWhitespace(a.AttrOr("title", ""))
			if title == "" {
				title = cleanText(a)
			}
			score := anchorScore(a)
			if score == "" {
				score = containerScore
			}
			title = truncateRunes(title, maxSummaryFieldLen)
			score = truncateRunes(score, maxSummaryFieldLen)

			if i, seen := index[detailURL]; seen {
				if summaries[i].ScoreText == "" {
					summaries[i].ScoreText = score
				}
				return true
			}
			if title == "" {
				return true
			}

			index[detailURL] = len(summaries)
			summaries = append(summaries, match.MatchSummary{
				Title:     title,
				ScoreText: score,
				DetailURL: detailURL,
			})
			return len(summaries) < e.maxMatches
		})
		return len(summaries) < e.maxMatches
	})

	return summaries
}

// containerScore reads a score from the container itself, but only when the
// container describes a single match; a carousel holding many matches would
// otherwise lend one match's score to another.
func (e *ListingExtractor) containerScore(container *goquery.Selection) string {
	urls := make(map[string]bool)
	container.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if u, ok := e.resolveDetailURL(a.AttrOr("href", "")); ok {
			urls[u] = true
		}
	})
	if len(urls) != 1 {
		return ""
	}
	return anchorScore(container)
}

func anchorScore(s *goquery.Selection) string {
	if cols := s.Find("div.cb-lv-scrs-col"); cols.Length() > 0 {
		if score := textWithSeparator(cols.First(), " "); score != "" {
			return score
		}
	}
	score, _ := firstText(s, listingScoreSelectors...)
	return score
}

// resolveDetailURL accepts relative links and absolute links on the site's
// own host, as long as they point at a match page.
func (e *ListingExtractor) resolveDetailURL(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := e.origin.ResolveReference(ref)
	if !isDetailPage(abs, e.origin.Host) {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// IsDetailURL reports whether raw is an absolute http(s) match page URL on
// origin's host. Anything else must never become a poll target.
func IsDetailURL(origin, raw string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	return isDetailPage(u, o.Host)
}

func isDetailPage(u *url.URL, host string) bool {
	return strings.EqualFold(u.Host, host) &&
		strings.HasPrefix(u.Path, DetailPathPrefix) &&
		len(u.Path) > len(DetailPathPrefix)
}
