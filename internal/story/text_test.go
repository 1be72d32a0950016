package story

import "testing"

func TestStandardizeQuotes(t *testing.T) {
	got := StandardizeQuotes("“Hello,” she said. It`s done.")
	want := `"Hello," she said. It's done.`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTrimIncompleteSentence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims dangling clause", "It was dark. The wind was", "It was dark."},
		{"keeps closing quote", `He said "Stop!" and then som`, `He said "Stop!"`},
		{"complete text unchanged", "All done here.", "All done here."},
		{"no punctuation unchanged", "no terminal punctuation at all", "no terminal punctuation at all"},
		{"question mark", "Really? May", "Really?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrimIncompleteSentence(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCollapseBlankLines(t *testing.T) {
	if got := CollapseBlankLines("a\n\nb\nc"); got != "a\nb\nc" {
		t.Fatalf("got %q", got)
	}
}

func TestStripSpecialChars(t *testing.T) {
	if got := StripSpecialChars("a#b/c@d%e<f>g{h}i+j=k~l|m^n"); got != "abcdefghijklmn" {
		t.Fatalf("got %q", got)
	}
}

func TestAddSentenceSpacing(t *testing.T) {
	if got := AddSentenceSpacing("Next sentence", "Ended here."); got != " Next sentence" {
		t.Fatalf("got %q", got)
	}
	if got := AddSentenceSpacing("continuation", "ended mid word"); got != "continuation" {
		t.Fatalf("got %q", got)
	}
	if got := AddSentenceSpacing("anything", ""); got != "anything" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanGeneratedPipeline(t *testing.T) {
	in := "“The door opened.”\n\nShe stepped ins"
	got := CleanGenerated(in, "It was quiet.")
	want := ` "The door opened."`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
