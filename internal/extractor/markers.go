package extractor

import (
	"regexp"
	"strings"
)

// #region marker-table

// marker recognizes one family of list-item prefixes. match returns the line
// with the prefix removed.
type marker struct {
	name  string
	match func(line string) (rest string, ok bool)
}

var labeledPrefix = regexp.MustCompile(`(?i)^\**\s*(option|variant|version|alternative|response)\s*#?([1-9])\s*[:.)]\**\s*`)

// markers is the complete set of recognized list-item prefixes, tried in order.
var markers = []marker{
	{name: "numeric", match: matchNumeric},
	{name: "bullet", match: matchBullet},
	{name: "labeled", match: matchLabeled},
}

var bulletRunes = []string{"•", "-", "*", "–"}

// #endregion marker-table

// #region matchers

// matchNumeric accepts "1." through "5." and "1)" through "5)".
func matchNumeric(line string) (string, bool) {
	if len(line) < 2 {
		return "", false
	}
	if line[0] < '1' || line[0] > '5' {
		return "", false
	}
	if line[1] != '.' && line[1] != ')' {
		return "", false
	}
	rest := line[2:]
	// "3.5%" is a number, not an item
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func matchBullet(line string) (string, bool) {
	for _, b := range bulletRunes {
		if !strings.HasPrefix(line, b) {
			continue
		}
		rest := line[len(b):]
		if rest == "" {
			return "", true
		}
		if rest[0] != ' ' && rest[0] != '\t' {
			return "", false
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func matchLabeled(line string) (string, bool) {
	loc := labeledPrefix.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(line[loc[1]:]), true
}

// matchMarker tries every marker in table order.
func matchMarker(line string) (string, bool) {
	for _, m := range markers {
		if rest, ok := m.match(line); ok {
			return rest, true
		}
	}
	return "", false
}

// #endregion matchers

// #region split

// SplitLines groups an ordered sequence of lines into items. A line carrying a
// recognized list prefix starts a new item; other lines continue the current
// one. Lines before the first marker are dropped once any marker is seen. With
// no markers at all, the joined lines form a single item. Blank lines are skipped.
func SplitLines(lines []string) []string {
	var (
		items    []string
		current  []string
		preamble []string
		seen     bool
	)

	flush := func() {
		if len(current) > 0 {
			items = append(items, strings.Join(current, "\n"))
		}
		current = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if rest, ok := matchMarker(line); ok {
			flush()
			seen = true
			if rest != "" {
				current = append(current, rest)
			} else {
				// keep the item open so its text can follow on the next line
				current = []string{}
			}
			continue
		}
		if !seen {
			preamble = append(preamble, line)
			continue
		}
		current = append(current, line)
	}
	flush()

	if !seen && len(preamble) > 0 {
		return []string{strings.Join(preamble, "\n")}
	}
	return items
}

// #endregion split
