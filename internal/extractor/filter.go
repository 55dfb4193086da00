package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// #region profiles

// Profile bounds what a variant may look like for a target medium.
type Profile struct {
	Name             string
	MaxRunes         int
	RejectShortLinks bool
}

var (
	// Chat is the default profile for chat messages.
	Chat = Profile{Name: "chat", MaxRunes: 500}
	// Tweet keeps variants tweet-sized and free of link shorteners.
	Tweet = Profile{Name: "tweet", MaxRunes: 280, RejectShortLinks: true}
)

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Chat.Name:
		return Chat, nil
	case Tweet.Name:
		return Tweet, nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
}

// #endregion profiles

// #region reject-patterns

var rejectedPrefixes = []string{
	"http",
	"[",
	"@",
}

var shortLinkDomains = []string{
	"t.co/",
	"bit.ly/",
	"tinyurl.com/",
	"goo.gl/",
	"ow.ly/",
	"buff.ly/",
	"is.gd/",
	"lnkd.in/",
}

// #endregion reject-patterns

// #region accept

// Accept reports whether candidate may be shown as a variant under p.
// The candidate is judged after trimming surrounding whitespace.
func Accept(candidate string, p Profile) bool {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return false
	}
	if utf8.RuneCountInString(trimmed) > p.MaxRunes {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, prefix := range rejectedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	if p.RejectShortLinks && ContainsShortLink(lower) {
		return false
	}
	return true
}

// ContainsShortLink reports whether s mentions a known link-shortener domain.
func ContainsShortLink(s string) bool {
	lower := strings.ToLower(s)
	for _, d := range shortLinkDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// #endregion accept
