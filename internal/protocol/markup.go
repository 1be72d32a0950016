package protocol

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Chunk markup is the wire representation of a chunk's content inside a
// replace-or-append-chunk command: the text lives in a <chunk n=N> element,
// line breaks are <br> tags, and everything else is escaped literal text.

// RenderChunkMarkup builds the wire markup for one chunk.
func RenderChunkMarkup(id int, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<chunk n="%d">`, id)
	for i, line := range strings.Split(content, "\n") {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString(html.EscapeString(line))
	}
	b.WriteString("</chunk>")
	return b.String()
}

// ParseChunkMarkup extracts the chunk identity and plain-text content from
// chunk markup. It accepts both quoted and unquoted n attributes and both
// <br> and <br/> breaks. Any other markup is rejected rather than guessed at.
func ParseChunkMarkup(markup string) (int, string, error) {
	s := strings.TrimSpace(markup)
	if !strings.HasPrefix(s, "<chunk ") {
		return 0, "", fmt.Errorf("chunk markup must start with <chunk>: %q", markup)
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return 0, "", fmt.Errorf("unterminated chunk tag: %q", markup)
	}
	attrs := s[len("<chunk "):end]
	id, err := parseChunkIdentity(attrs)
	if err != nil {
		return 0, "", err
	}

	body := s[end+1:]
	const closing = "</chunk>"
	if !strings.HasSuffix(body, closing) {
		return 0, "", fmt.Errorf("chunk markup missing closing tag: %q", markup)
	}
	body = body[:len(body)-len(closing)]

	body = strings.ReplaceAll(body, "<br/>", "\n")
	body = strings.ReplaceAll(body, "<br>", "\n")
	if strings.ContainsAny(body, "<>") {
		return 0, "", fmt.Errorf("unexpected markup inside chunk %d", id)
	}
	return id, html.UnescapeString(body), nil
}

func parseChunkIdentity(attrs string) (int, error) {
	for _, attr := range strings.Fields(attrs) {
		name, value, ok := strings.Cut(attr, "=")
		if !ok || name != "n" {
			continue
		}
		value = strings.Trim(value, `"'`)
		id, err := strconv.Atoi(value)
		if err != nil || id < 0 {
			return 0, fmt.Errorf("invalid chunk identity %q", value)
		}
		return id, nil
	}
	return 0, fmt.Errorf("chunk markup missing n attribute")
}
