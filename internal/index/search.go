package index

import (
	"database/sql"
	"strings"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	snippetRunes       = 160
)

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}

// likePattern quotes SQL LIKE wildcards in q; queries pair it with ESCAPE '\'.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// ftsQuery turns free text into an FTS5 expression that matches every
// word as a literal term, so punctuation in user input is not parsed as
// query syntax.
func ftsQuery(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

// snippetAround cuts a window of body centred on the first
// case-insensitive match of q. Without a match it returns the start.
func snippetAround(body, q string) string {
	if utf8.RuneCountInString(body) <= snippetRunes {
		return body
	}
	runes := []rune(body)
	start := 0
	if i := strings.Index(strings.ToLower(body), strings.ToLower(q)); i >= 0 && q != "" {
		start = utf8.RuneCountInString(body[:i]) - snippetRunes/4
	}
	start = max(0, min(start, len(runes)-snippetRunes))
	out := string(runes[start : start+snippetRunes])
	if start > 0 {
		out = "..." + out
	}
	if start+snippetRunes < len(runes) {
		out += "..."
	}
	return out
}

func scanResults(rows *sql.Rows, snippet func(string) string) ([]SearchResult, error) {
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		if snippet != nil {
			r.Snippet = snippet(r.Snippet)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
