package index

import (
	"strings"
	"testing"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got := likePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Errorf("likePattern = %q", got)
	}
}

func TestFTSQueryQuotesWords(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"bread":            `"bread"`,
		"rye  bread":       `"rye" "bread"`,
		`say "hi" AND-NOT`: `"say" """hi""" "AND-NOT"`,
	}
	for in, want := range tests {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnippetAround(t *testing.T) {
	if got := snippetAround("short body", "body"); got != "short body" {
		t.Errorf("short = %q", got)
	}

	body := strings.Repeat("a", 300) + "needle" + strings.Repeat("b", 300)
	got := snippetAround(body, "NEEDLE")
	if !strings.Contains(got, "needle") {
		t.Errorf("window misses match: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("window not marked as cut: %q", got)
	}

	got = snippetAround(body, "absent")
	if strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("no match should start at the beginning: %q", got)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(doc("s.enml", "1", "anything"))
	results, err := db.Search("   ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("empty query = %v, %v", results, err)
	}
}
