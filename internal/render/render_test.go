package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"announcer/internal/domain"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Announcement
		want string
	}{
		{
			name: "markdown links",
			in: domain.Announcement{
				Title: "Docs moved",
				Link:  "https://example.com/log/#docs",
				Body:  "See [docs](https://d.example.com) and [faq](https://f.example.com).",
			},
			want: "<https://example.com/log/#docs|Docs moved>\nSee <https://d.example.com|docs> and <https://f.example.com|faq>.",
		},
		{
			name: "empty body",
			in:   domain.Announcement{Title: "Short", Link: "https://example.com/#s"},
			want: "<https://example.com/#s|Short>",
		},
		{
			name: "no link",
			in:   domain.Announcement{Title: "Plain", Body: "text"},
			want: "Plain\ntext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.in))
		})
	}
}

func TestBody_HTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraph with link and list",
			in:   `<p>Hello <a href="https://a.example.com">world</a></p><ul><li>one</li><li>two</li></ul>`,
			want: "Hello <https://a.example.com|world>\n\n• one\n• two",
		},
		{
			name: "emphasis",
			in:   `<p><strong>Note:</strong> it is <em>done</em></p>`,
			want: "*Note:* it is _done_",
		},
		{
			name: "bare link",
			in:   `<p><a href="https://a.example.com">https://a.example.com</a></p>`,
			want: "<https://a.example.com>",
		},
		{
			name: "line breaks",
			in:   `first<br>second`,
			want: "first\nsecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Body(tt.in))
		})
	}
}

func TestBody_MarkdownUntouchedOtherwise(t *testing.T) {
	in := "Line one\n\n  - indented item\n`code`"
	assert.Equal(t, in, Body(in))
}

func TestBody_SlackLinksAreNotHTML(t *testing.T) {
	in := "Already formatted <https://example.com|link>"
	assert.Equal(t, in, Body(in))
}
