package richtext

import (
	"testing"
)

func TestFromHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain text", "  Play chess.  ", "Play chess."},
		{"plain entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"paragraphs", "<p>One</p><p>Two</p>", "One\n\nTwo"},
		{"line breaks", "Line one<br>Line two<br />Line three", "Line one\nLine two\nLine three"},
		{"bold", "<p>This is <b>bold</b> and <strong>strong</strong></p>", "This is **bold** and **strong**"},
		{"italic", "<p><i>New</i> and <em>improved</em></p>", "*New* and *improved*"},
		{"heading", "<h2>What's new</h2><p>Fixes</p>", "**What's new**\n\nFixes"},
		{"link", `<a href="https://example.com">site</a>`, "[site](https://example.com)"},
		{"unordered list", "<ul><li>One</li><li> Two </li></ul>", "- One\n- Two"},
		{"ordered list", "<ol><li>First</li><li>Second</li></ol>", "1. First\n2. Second"},
		{"unknown tags dropped", `<div class="x"><span>Kept</span></div>`, "Kept"},
		{"entities", "<p>&lt;3 &quot;quoted&quot; &#39;</p>", `<3 "quoted" '`},
		{"blank runs collapse", "<p>A</p>\n\n\n<p>B</p>", "A\n\nB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromHTML(tt.input); got != tt.expected {
				t.Errorf("FromHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"paragraph", "Hello world", "<p>Hello world</p>"},
		{"paragraphs", "One\n\nTwo", "<p>One</p><p>Two</p>"},
		{"line break", "One\nTwo", "<p>One<br>Two</p>"},
		{"bold and italic", "Signed in as **Ada** and *happy*", "<p>Signed in as <strong>Ada</strong> and <em>happy</em></p>"},
		{"escapes markup", "<script>alert(1)</script>", "<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>"},
		{"link", "[Docs](https://example.com/a?b=1&c=2)", `<p><a href="https://example.com/a?b=1&amp;c=2">Docs</a></p>`},
		{"relative link", "[Games](/us/games)", `<p><a href="/us/games">Games</a></p>`},
		{"unsafe link", "[x](javascript:void)", "<p>x</p>"},
		{"protocol relative link", "[x](//evil.example)", "<p>x</p>"},
		{"unordered list", "- One\n- Two", "<ul><li>One</li><li>Two</li></ul>"},
		{"ordered list", "1. First\n2. **Second**", "<ol><li>First</li><li><strong>Second</strong></li></ol>"},
		{"mixed block", "Intro\n- not a list", "<p>Intro<br>- not a list</p>"},
		{"crlf", "One\r\n\r\nTwo", "<p>One</p><p>Two</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHTML(tt.input); got != tt.expected {
				t.Errorf("ToHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlain(t *testing.T) {
	got := Plain("Signed in as **Ada**, see [docs](https://example.com) *now*")
	if want := "Signed in as Ada, see docs now"; got != want {
		t.Errorf("Plain() = %q, want %q", got, want)
	}
}

func TestIsHTML(t *testing.T) {
	tests := map[string]bool{
		"":                false,
		"plain text":      false,
		"1 < 2 and 3 > 2": false,
		"<p>text</p>":     true,
		"line<br>break":   true,
	}
	for input, want := range tests {
		if got := IsHTML(input); got != want {
			t.Errorf("IsHTML(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	md := "Intro with **bold**\n\n- One\n- Two"
	if got := FromHTML(ToHTML(md)); got != md {
		t.Errorf("round trip = %q, want %q", got, md)
	}
}
