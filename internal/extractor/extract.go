// Package extractor turns raw backend output into display-ready variants.
// Everything here is pure: no I/O, no randomness, same input same output.
package extractor

import (
	"strings"
)

// #region extract

// Extract splits one raw backend response into filtered variants, in order.
// When echoMarker is non-empty and present, everything up to and including its
// last occurrence is discarded first. The result may be empty.
func Extract(raw, echoMarker string, p Profile) []string {
	body := raw
	if echoMarker != "" {
		if idx := strings.LastIndex(body, echoMarker); idx >= 0 {
			body = body[idx+len(echoMarker):]
		}
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")

	var out []string
	seen := make(map[string]struct{})
	for _, item := range SplitLines(strings.Split(body, "\n")) {
		v := clean(item)
		if !Accept(v, p) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ExtractAll runs Extract over several raw responses and deduplicates across them.
func ExtractAll(raws []string, echoMarker string, p Profile) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range raws {
		for _, v := range Extract(raw, echoMarker, p) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// #endregion extract

// #region clean

var quotePairs = [][2]string{
	{`"`, `"`},
	{"“", "”"},
	{"'", "'"},
	{"«", "»"},
}

func clean(item string) string {
	s := strings.TrimSpace(stripEmphasis(item))
	for _, q := range quotePairs {
		if len(s) > len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			inner := s[len(q[0]) : len(s)-len(q[1])]
			// leave "a" and "b" alone
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				s = strings.TrimSpace(inner)
			}
			break
		}
	}
	return s
}

// #endregion clean
