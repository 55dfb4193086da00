package feedback

import (
	"sort"
	"time"
)

// TextScore aggregates votes for one variant text.
type TextScore struct {
	Text string `json:"text"`
	Up   int    `json:"up"`
	Down int    `json:"down"`
}

// Net is up minus down.
func (t TextScore) Net() int {
	return t.Up - t.Down
}

// Summary is an aggregate view over a vote log.
type Summary struct {
	Total   int         `json:"total"`
	Up      int         `json:"up"`
	Down    int         `json:"down"`
	Unknown int         `json:"unknown"`
	Voters  int         `json:"voters"`
	First   time.Time   `json:"first,omitempty"`
	Last    time.Time   `json:"last,omitempty"`
	Texts   []TextScore `json:"texts"`
}

// Summarize counts votes per direction and per text. Texts are ordered by net
// score descending, then by total votes, then alphabetically. Votes recorded
// against UnknownText are counted but excluded from Texts.
func Summarize(records []Record) Summary {
	var s Summary
	voters := make(map[string]struct{})
	byText := make(map[string]*TextScore)

	for _, r := range records {
		s.Total++
		voters[r.Voter] = struct{}{}
		if s.First.IsZero() || r.Timestamp.Before(s.First) {
			s.First = r.Timestamp
		}
		if r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}

		switch r.Vote {
		case VoteUp:
			s.Up++
		case VoteDown:
			s.Down++
		}

		if r.Text == UnknownText {
			s.Unknown++
			continue
		}
		ts, ok := byText[r.Text]
		if !ok {
			ts = &TextScore{Text: r.Text}
			byText[r.Text] = ts
		}
		if r.Vote == VoteUp {
			ts.Up++
		} else {
			ts.Down++
		}
	}
	s.Voters = len(voters)

	s.Texts = make([]TextScore, 0, len(byText))
	for _, ts := range byText {
		s.Texts = append(s.Texts, *ts)
	}
	sort.Slice(s.Texts, func(i, j int) bool {
		a, b := s.Texts[i], s.Texts[j]
		if a.Net() != b.Net() {
			return a.Net() > b.Net()
		}
		if a.Up+a.Down != b.Up+b.Down {
			return a.Up+a.Down > b.Up+b.Down
		}
		return a.Text < b.Text
	})
	return s
}
