package replay

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/sproto/internal/extractor"
)

// 1. Matching case: Diff empty, Match true.
func TestReplayCases_Match(t *testing.T) {
	cases := []FixtureCase{{
		Name:     "simple",
		Raw:      []string{"1. one\n2. two"},
		Expected: []string{"one", "two"},
	}}

	results := ReplayCases(cases, "", extractor.Chat)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Match() {
		t.Errorf("expected match, diff:\n%s", results[0].Diff)
	}
}

// 2. Divergent case: Diff names the missing and unexpected variants.
func TestReplayCases_Diverge(t *testing.T) {
	cases := []FixtureCase{{
		Name:     "drift",
		Raw:      []string{"1. one\n2. three"},
		Expected: []string{"one", "two"},
	}}

	r := ReplayCases(cases, "", extractor.Chat)[0]
	if r.Match() {
		t.Fatal("expected divergence")
	}
	if !strings.Contains(r.Diff, `"two"`) || !strings.Contains(r.Diff, `"three"`) {
		t.Errorf("diff should mention both sides, got:\n%s", r.Diff)
	}
}

// 3. Nil and empty expectations are equivalent.
func TestReplayCases_EmptyEquatesNil(t *testing.T) {
	cases := []FixtureCase{{Name: "none", Raw: []string{"[citation needed]"}}}
	r := ReplayCases(cases, "", extractor.Chat)[0]
	if !r.Match() {
		t.Errorf("expected match for empty output, diff:\n%s", r.Diff)
	}
}

// 4. Echo marker is honored.
func TestReplayCases_EchoMarker(t *testing.T) {
	cases := []FixtureCase{{
		Name:     "echo",
		Raw:      []string{"prompt text\nBot: - kept"},
		Expected: []string{"kept"},
	}}
	if r := ReplayCases(cases, "Bot:", extractor.Chat)[0]; !r.Match() {
		t.Errorf("diff:\n%s", r.Diff)
	}
}

func TestReplay_UnknownProfile(t *testing.T) {
	f := &Fixture{Profile: "sonnet", Cases: []FixtureCase{{Name: "x"}}}
	if _, err := Replay(f); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{{Name: "a"}, {Name: "b", Diff: "-x +y"}, {Name: "c"}}
	s := Summarize(results)
	if s.Total != 3 || s.Matches != 2 || s.Diverged != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}
