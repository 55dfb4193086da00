package generator

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/sproto/internal/extractor"
)

// #region template-definitions

// styleTemplates are the offline fallback voices. Each has exactly one %s for
// the sanitized source text and starts with a letter so the result never
// trips the prefix filter.
var styleTemplates = []string{
	"Ser, %s is the only thing I think about.",
	"Not financial advice, but %s.",
	"Imagine not being bullish on %s.",
	"Gm to everyone except people who doubt %s.",
	"Wake up, check charts, whisper %s, go back to sleep.",
	"They laughed at %s. Nobody is laughing now.",
	"My therapist says %s is not a personality. Wrong.",
	"Every cycle someone says %s and every cycle they are early.",
}

// genericFallback passes every profile's filter.
const genericFallback = "No thoughts, just vibes."

// Placeholder is shown instead of a variant when templates are disabled and
// nothing else produced text.
const Placeholder = "Temporarily unavailable, try again in a bit."

// #endregion template-definitions

// #region selection

// templateVariants returns count template-derived variants for source, none of
// which is in skip. The starting template is picked by an FNV-1a hash of the
// source so the same text always gets the same voices in the same order.
func templateVariants(source string, count int, p extractor.Profile, skip map[string]struct{}) []string {
	if count <= 0 {
		return nil
	}
	h := fnv.New32a()
	h.Write([]byte(source))
	start := int(h.Sum32() % uint32(len(styleTemplates)))

	subject := sanitizeSubject(source)
	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count+len(skip))
	for k := range skip {
		seen[k] = struct{}{}
	}

	add := func(v string) bool {
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
		out = append(out, v)
		return true
	}

	for i := 0; len(out) < count; i++ {
		tpl := styleTemplates[(start+i)%len(styleTemplates)]
		round := i / len(styleTemplates)

		v := render(tpl, subject, p.MaxRunes)
		if !extractor.Accept(v, p) {
			v = genericFallback
		}
		if round > 0 {
			v = numbered(v, round+1, p.MaxRunes)
		}
		if !add(v) {
			// collision with a backend variant or the generic line; number it
			for n := 2; !add(numbered(v, n, p.MaxRunes)); n++ {
			}
		}
	}
	return out
}

// placeholders returns count distinct copies of Placeholder not in skip,
// numbered when more than one is needed.
func placeholders(count int, skip map[string]struct{}) []string {
	if count <= 0 {
		return nil
	}
	if _, taken := skip[Placeholder]; count == 1 && !taken {
		return []string{Placeholder}
	}
	out := make([]string, 0, count)
	for n := 1; len(out) < count; n++ {
		v := fmt.Sprintf("%s (%d)", Placeholder, n)
		if _, taken := skip[v]; !taken {
			out = append(out, v)
		}
	}
	return out
}

// #endregion selection

// #region sanitize

// sanitizeSubject drops link-like tokens and leading markup from source so
// it can be embedded in a template.
func sanitizeSubject(source string) string {
	var kept []string
	for _, tok := range strings.Fields(source) {
		lower := strings.ToLower(tok)
		if strings.Contains(lower, "://") || strings.HasPrefix(lower, "www.") {
			continue
		}
		if extractor.ContainsShortLink(lower) {
			continue
		}
		kept = append(kept, tok)
	}
	s := strings.Join(kept, " ")
	s = strings.TrimLeft(s, "[@#")
	s = strings.Trim(s, " \"'.,!?")
	if s == "" {
		return "this"
	}
	return s
}

// render fills tpl with subject, shortening subject so the result fits maxRunes.
func render(tpl, subject string, maxRunes int) string {
	room := maxRunes - (utf8.RuneCountInString(tpl) - 2)
	if room < 1 {
		return genericFallback
	}
	if utf8.RuneCountInString(subject) > room {
		r := []rune(subject)
		subject = strings.TrimSpace(string(r[:room]))
	}
	return fmt.Sprintf(tpl, subject)
}

func numbered(v string, n, maxRunes int) string {
	suffix := fmt.Sprintf(" (%d)", n)
	if utf8.RuneCountInString(v)+len(suffix) > maxRunes {
		r := []rune(v)
		v = strings.TrimSpace(string(r[:maxRunes-len(suffix)]))
	}
	return v + suffix
}

// #endregion sanitize
