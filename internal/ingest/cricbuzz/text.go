package cricbuzz

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// collapseWhitespace folds runs of whitespace, including newlines, into
// single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

// cleanText is the visible text of a selection with whitespace collapsed.
func cleanText(s *goquery.Selection) string {
	return collapseWhitespace(s.Text())
}

// textWithSeparator joins the selection's text nodes with sep, so adjacent
// elements such as "IND" and "180/5" do not run together.
func textWithSeparator(s *goquery.Selection, sep string) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return collapseWhitespace(strings.Join(parts, sep))
}

// firstText returns the cleaned text of the first non-empty match of any of
// the selectors, tried in order.
func firstText(root *goquery.Selection, selectors ...string) (string, string) {
	for _, sel := range selectors {
		var found string
		root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanText(s)
			return found == ""
		})
		if found != "" {
			return found, sel
		}
	}
	return "", ""
}
