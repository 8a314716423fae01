package textproc

import "testing"

func TestFromMarkdown(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		opts   Options
		expect string
	}{
		{
			name:   "plain text",
			input:  "Hello world",
			expect: "Hello world",
		},
		{
			name:   "heading gets a full stop",
			input:  "# Getting started\n\nInstall it first.",
			expect: "Getting started.\nInstall it first.",
		},
		{
			name:   "heading with punctuation",
			input:  "## Ready?",
			expect: "Ready?",
		},
		{
			name:   "emphasis and strong",
			input:  "This is *very* **important**.",
			expect: "This is very important.",
		},
		{
			name:   "link text only",
			input:  "See [the docs](https://example.com/docs) for more.",
			expect: "See the docs for more.",
		},
		{
			name:   "autolink dropped",
			input:  "Visit <https://example.com> today.",
			expect: "Visit today.",
		},
		{
			name:   "fenced code dropped",
			input:  "Run this:\n\n```sh\nrm -rf /\n```\n\nDone.",
			expect: "Run this:\nDone.",
		},
		{
			name:   "inline code dropped by default",
			input:  "Call `Close` when done.",
			expect: "Call when done.",
		},
		{
			name:   "inline code kept",
			input:  "Call `Close` when done.",
			opts:   Options{IncludeCode: true},
			expect: "Call Close when done.",
		},
		{
			name:   "list items on their own lines",
			input:  "- first\n- second\n- third",
			expect: "first\nsecond\nthird",
		},
		{
			name:   "soft line breaks join",
			input:  "one\ntwo\nthree",
			expect: "one two three",
		},
		{
			name:   "image skipped",
			input:  "Look ![a cat](cat.png) here.",
			expect: "Look here.",
		},
		{
			name:   "image alt read",
			input:  "Look ![a cat](cat.png) here.",
			opts:   Options{ImageAlt: true},
			expect: "Look image: a cat here.",
		},
		{
			name:   "html dropped",
			input:  "<div>hidden</div>\n\nshown",
			expect: "shown",
		},
		{
			name:   "empty",
			input:  "",
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromMarkdown(tt.input, tt.opts)
			if err != nil {
				t.Fatalf("FromMarkdown failed: %v", err)
			}
			if got != tt.expect {
				t.Errorf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
