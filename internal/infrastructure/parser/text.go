package parser

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const summaryMaxRunes = 300

var cdataExpr = regexp.MustCompile(`<!\[CDATA\[([\s\S]*?)\]\]>`)

// cleanText strips markup, decodes entities and collapses whitespace.
func cleanText(s string) string {
	s = cdataExpr.ReplaceAllString(s, "$1")
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

// canonicalURL drops fragments and click-tracking parameters so the same
// article linked from two campaigns maps to one natural key.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			lk := strings.ToLower(k)
			if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "mc_cid" || lk == "mc_eid" {
				q.Del(k)
			}
		}
		for k := range q {
			sort.Strings(q[k])
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
