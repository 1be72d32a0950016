package story

import (
	"regexp"
	"strings"
)

// Hygiene passes applied to generated text before it is appended to the
// register and broadcast to editors.

var specialChars = regexp.MustCompile(`[#/@%<>{}+=~|\^]`)

// StandardizeQuotes replaces curly quotes and backtick apostrophes with
// their plain ASCII forms.
func StandardizeQuotes(text string) string {
	replacer := strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"’", "'",
		"`", "'",
	)
	return replacer.Replace(text)
}

// TrimIncompleteSentence cuts the text at its last sentence-final
// punctuation mark, keeping a closing double quote that immediately follows
// it. Text with no terminal punctuation is returned unchanged.
func TrimIncompleteSentence(text string) string {
	last := -1
	for _, punct := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(text, punct); idx > last {
			last = idx
		}
	}
	if last < 0 {
		return text
	}
	if last < len(text)-1 && text[last+1] == '"' {
		last++
	}
	return text[:last+1]
}

// CollapseBlankLines removes empty lines left behind by the generator.
func CollapseBlankLines(text string) string {
	return strings.ReplaceAll(text, "\n\n", "\n")
}

// StripSpecialChars drops markup-ish characters that never belong in story
// prose.
func StripSpecialChars(text string) string {
	return specialChars.ReplaceAllString(text, "")
}

// AddSentenceSpacing prepends a space when the new text follows a sentence
// closure in the preceding content.
func AddSentenceSpacing(text, preceding string) string {
	if preceding == "" {
		return text
	}
	switch preceding[len(preceding)-1] {
	case '.', '!', '?', ',', ';', ':':
		return " " + text
	}
	return text
}

// CleanGenerated runs the full hygiene pipeline on generated text, given the
// content it will be appended after.
func CleanGenerated(text, preceding string) string {
	text = StandardizeQuotes(text)
	text = StripSpecialChars(text)
	text = CollapseBlankLines(text)
	text = TrimIncompleteSentence(text)
	return AddSentenceSpacing(text, preceding)
}
