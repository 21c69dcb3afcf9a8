// Package richtext converts page descriptions between the HTML the media API
// returns and the Markdown pages carry. The terminal renders the Markdown
// with glamour; the server turns it back into safe HTML.
package richtext

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	headingTag   = regexp.MustCompile(`(?is)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	ulTag        = regexp.MustCompile(`(?is)<ul[^>]*>(.*?)</ul>`)
	olTag        = regexp.MustCompile(`(?is)<ol[^>]*>(.*?)</ol>`)
	liTag        = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	paragraphTag = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	brTag        = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	boldTag      = regexp.MustCompile(`(?is)<(?:strong|b)(?:\s[^>]*)?>(.*?)</(?:strong|b)>`)
	italicTag    = regexp.MustCompile(`(?is)<(?:em|i)(?:\s[^>]*)?>(.*?)</(?:em|i)>`)
	linkTag      = regexp.MustCompile(`(?is)<a[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
	openTag      = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)

	ulItem     = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	olItem     = regexp.MustCompile(`^\s*\d+\.\s+(.*)$`)
	boldMark   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicMark = regexp.MustCompile(`\*([^*]+)\*`)
	linkMark   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// FromHTML converts an HTML description to Markdown. Text without tags is
// returned trimmed.
func FromHTML(s string) string {
	s = strings.TrimSpace(s)
	if !IsHTML(s) {
		return html.UnescapeString(s)
	}

	s = headingTag.ReplaceAllString(s, "**$1**\n\n")
	s = ulTag.ReplaceAllStringFunc(s, func(list string) string {
		return listItems(ulTag.FindStringSubmatch(list)[1], func(int) string { return "- " })
	})
	s = olTag.ReplaceAllStringFunc(s, func(list string) string {
		return listItems(olTag.FindStringSubmatch(list)[1], func(i int) string { return strconv.Itoa(i+1) + ". " })
	})
	s = paragraphTag.ReplaceAllString(s, "$1\n\n")
	s = brTag.ReplaceAllString(s, "\n")
	s = boldTag.ReplaceAllString(s, "**$1**")
	s = italicTag.ReplaceAllString(s, "*$1*")
	s = linkTag.ReplaceAllString(s, "[$2]($1)")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func listItems(inner string, marker func(int) string) string {
	var b strings.Builder
	for i, item := range liTag.FindAllStringSubmatch(inner, -1) {
		b.WriteString(marker(i) + strings.TrimSpace(item[1]) + "\n")
	}
	return b.String() + "\n"
}

// ToHTML renders Markdown as HTML. Input is escaped before any markup is
// added, and links keep only http(s) and site-relative targets.
func ToHTML(md string) string {
	md = strings.ReplaceAll(strings.TrimSpace(md), "\r\n", "\n")
	if md == "" {
		return ""
	}

	var b strings.Builder
	for _, block := range strings.Split(md, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 1 && lines[0] == "" {
			continue
		}
		switch {
		case allMatch(lines, ulItem):
			writeList(&b, "ul", lines, ulItem)
		case allMatch(lines, olItem):
			writeList(&b, "ol", lines, olItem)
		default:
			for i, line := range lines {
				lines[i] = inline(strings.TrimSpace(line))
			}
			b.WriteString("<p>" + strings.Join(lines, "<br>") + "</p>")
		}
	}
	return b.String()
}

func allMatch(lines []string, re *regexp.Regexp) bool {
	for _, line := range lines {
		if !re.MatchString(line) {
			return false
		}
	}
	return true
}

func writeList(b *strings.Builder, tag string, lines []string, re *regexp.Regexp) {
	b.WriteString("<" + tag + ">")
	for _, line := range lines {
		b.WriteString("<li>" + inline(re.FindStringSubmatch(line)[1]) + "</li>")
	}
	b.WriteString("</" + tag + ">")
}

func inline(s string) string {
	s = html.EscapeString(s)
	s = linkMark.ReplaceAllStringFunc(s, func(m string) string {
		parts := linkMark.FindStringSubmatch(m)
		if !safeHref(html.UnescapeString(parts[2])) {
			return parts[1]
		}
		return `<a href="` + parts[2] + `">` + parts[1] + `</a>`
	})
	s = boldMark.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicMark.ReplaceAllString(s, "<em>$1</em>")
	return s
}

func safeHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") ||
		(strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//"))
}

// Plain strips Markdown markers, for places that only take text.
func Plain(md string) string {
	md = linkMark.ReplaceAllString(md, "$1")
	md = boldMark.ReplaceAllString(md, "$1")
	md = italicMark.ReplaceAllString(md, "$1")
	return strings.TrimSpace(md)
}

// IsHTML reports whether s contains an HTML tag.
func IsHTML(s string) bool {
	return openTag.MatchString(s)
}
