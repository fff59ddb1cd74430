// Package parser extracts searchable text, title, tags, links and media
// references from note markup.
package parser

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/starford/noteml/internal/markup"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Elements that end a line of text.
var blockElements = map[string]struct{}{
	"en-note": {}, "div": {}, "p": {}, "br": {}, "li": {}, "tr": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "pre": {}, "hr": {}, "table": {},
}

const maxTitleLen = 120

// Result holds the output of parsing note markup.
type Result struct {
	Title string
	// Body is the plain text of the note; encrypted sections are left out.
	Body        string
	Links       []string
	Tags        []string
	MediaHashes []string
	TodoTotal   int
	TodoDone    int
}

// Parse walks the markup once and collects its text and references.
func Parse(data []byte) (*Result, error) {
	r := markup.NewReader(bytes.NewReader(data))
	res := &Result{}

	var (
		body       strings.Builder
		heading    strings.Builder
		inHeading  bool
		cryptDepth int
	)
	seenLinks := make(map[string]struct{})

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ev.Kind {
		case markup.KindStart:
			switch ev.Name {
			case "en-crypt":
				cryptDepth++
			case "en-media":
				if h, ok := ev.AttrValue("hash"); ok && h != "" {
					res.MediaHashes = append(res.MediaHashes, h)
				}
			case "en-todo":
				res.TodoTotal++
				if v, _ := ev.AttrValue("checked"); strings.EqualFold(v, "true") {
					res.TodoDone++
				}
			case "a":
				if href, ok := ev.AttrValue("href"); ok && href != "" {
					if _, dup := seenLinks[href]; !dup {
						seenLinks[href] = struct{}{}
						res.Links = append(res.Links, href)
					}
				}
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if res.Title == "" {
					inHeading = true
				}
			}
			if _, ok := blockElements[ev.Name]; ok {
				newline(&body)
			}
		case markup.KindEnd:
			switch ev.Name {
			case "en-crypt":
				cryptDepth--
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if inHeading {
					inHeading = false
					res.Title = clip(heading.String())
				}
			}
			if _, ok := blockElements[ev.Name]; ok {
				newline(&body)
			}
		case markup.KindText:
			if cryptDepth > 0 {
				continue
			}
			body.WriteString(ev.Text)
			if inHeading {
				heading.WriteString(ev.Text)
			}
		}
	}

	res.Body = strings.TrimSpace(body.String())
	res.Tags = extractTags(res.Body)
	if res.Title == "" {
		res.Title = firstLine(res.Body)
	}
	return res, nil
}

func newline(b *strings.Builder) {
	s := b.String()
	if len(s) > 0 && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

// extractTags collects inline #tags from the note text.
func extractTags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return clip(trimmed)
		}
	}
	return ""
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxTitleLen {
		return string(r[:maxTitleLen])
	}
	return s
}
