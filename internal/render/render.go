// Package render turns announcements into Slack mrkdwn messages.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"announcer/internal/domain"
)

var (
	markdownLink = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	htmlTag      = regexp.MustCompile(`(?i)</?(p|br|a|ul|ol|li|h[1-6]|div|span|strong|em|b|i|code|pre|blockquote|img)\b[^>]*>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// Message renders the announcement as a linked title followed by its body.
func Message(a domain.Announcement) string {
	header := a.Title
	if a.Link != "" {
		header = fmt.Sprintf("<%s|%s>", a.Link, a.Title)
	}

	body := Body(a.Body)
	if body == "" {
		return header
	}
	return header + "\n" + body
}

// Body converts Markdown links and, when present, HTML markup to mrkdwn.
func Body(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if htmlTag.MatchString(text) {
		text = htmlToMrkdwn(text)
	}

	text = markdownLink.ReplaceAllString(text, "<$2|$1>")

	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

func htmlToMrkdwn(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		if label == "" || label == href {
			s.ReplaceWithNodes(textNode("<" + href + ">"))
			return
		}
		s.ReplaceWithNodes(textNode(fmt.Sprintf("<%s|%s>", href, label)))
	})

	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(textNode("\n```\n" + strings.Trim(s.Text(), "\n") + "\n```\n"))
	})
	doc.Find("code").Each(func(_ int, s *goquery.Selection) {
		wrap(s, "`", "`")
	})
	doc.Find("strong, b, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		wrap(s, "*", "*")
	})
	doc.Find("em, i").Each(func(_ int, s *goquery.Selection) {
		wrap(s, "_", "_")
	})
	doc.Find("blockquote").Each(func(_ int, s *goquery.Selection) {
		wrap(s, "> ", "")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		wrap(s, "• ", "\n")
	})
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(textNode("\n"))
	})
	doc.Find("p, div, ul, ol, blockquote, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(textNode("\n\n"))
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

func wrap(s *goquery.Selection, prefix, suffix string) {
	if prefix != "" {
		s.PrependNodes(textNode(prefix))
	}
	if suffix != "" {
		s.AppendNodes(textNode(suffix))
	}
}

func textNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
