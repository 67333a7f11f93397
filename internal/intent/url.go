package intent

import (
	"net/url"
	"strings"
	"unicode"
)

// spokenURL extracts a web address from text. Recognisers write addresses
// either literally ("example.com") or spelled out ("example dot com").
func spokenURL(text string) (string, bool) {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, " dot ", ".")
	for _, f := range strings.Fields(s) {
		f = strings.TrimRightFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '/'
		})
		if !strings.Contains(f, "://") {
			f = "https://" + f
		}
		u, err := url.Parse(f)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if looksLikeHost(u.Hostname()) {
			return u.String(), true
		}
	}
	return "", false
}

func looksLikeHost(host string) bool {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
