// Package replay runs recorded backend outputs back through the extractor and
// compares what comes out against stored expectations.
package replay

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/sproto/internal/extractor"
)

// #region types

// Result captures the outcome of replaying one fixture case.
type Result struct {
	Name     string
	Expected []string
	Got      []string
	Diff     string // cmp.Diff(Expected, Got); empty on match
}

// Match reports whether the case reproduced its expectation.
func (r Result) Match() bool {
	return r.Diff == ""
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total    int
	Matches  int
	Diverged int
}

// #endregion types

// #region replay

// Replay extracts every case with the fixture's profile and echo marker.
func Replay(f *Fixture) ([]Result, error) {
	p, err := f.ToProfile()
	if err != nil {
		return nil, err
	}
	return ReplayCases(f.Cases, f.EchoMarker, p), nil
}

// ReplayCases is Replay with the profile already resolved.
func ReplayCases(cases []FixtureCase, echoMarker string, p extractor.Profile) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		got := extractor.ExtractAll(c.Raw, echoMarker, p)
		results = append(results, Result{
			Name:     c.Name,
			Expected: c.Expected,
			Got:      got,
			Diff:     cmp.Diff(c.Expected, got, cmpopts.EquateEmpty()),
		})
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Match() {
			s.Matches++
		} else {
			s.Diverged++
		}
	}
	return s
}

// #endregion replay
