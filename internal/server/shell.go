package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/richtext"
)

// PrefetchScriptID is the id of the script element holding the prefetched
// intents. The wasm client reads it on startup.
const PrefetchScriptID = "storefront-prefetched"

// ShellData is what the HTML shell renders.
type ShellData struct {
	Lang       string
	Page       *intent.Page
	Prefetched []jet.PrefetchedIntent
	// ServerSide marks pages the client must never render itself.
	ServerSide bool
}

// Shell renders the full document for a page.
func Shell(d ShellData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := d.Page
		prefetched, err := json.Marshal(d.Prefetched)
		if err != nil {
			return fmt.Errorf("encode prefetched intents: %w", err)
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n")
		fmt.Fprintf(&b, `<html lang="%s">`, templ.EscapeString(d.Lang))
		b.WriteString("<head><meta charset=\"utf-8\">")
		fmt.Fprintf(&b, "<title>%s</title>", templ.EscapeString(p.Title))
		if p.CanonicalURL != "" {
			fmt.Fprintf(&b, `<link rel="canonical" href="%s">`, templ.EscapeString(p.CanonicalURL))
		}
		if p.Description != "" {
			fmt.Fprintf(&b, `<meta name="description" content="%s">`, templ.EscapeString(richtext.Plain(firstLine(p.Description))))
		}
		b.WriteString("</head>")

		fmt.Fprintf(&b, `<body data-page-kind="%s"`, templ.EscapeString(string(p.Kind)))
		if d.ServerSide {
			b.WriteString(` data-server-side="true"`)
		}
		b.WriteString("><main>")
		writePage(&b, p)
		b.WriteString("</main>")
		// json.Marshal escapes <, > and &, so the payload cannot close the tag.
		fmt.Fprintf(&b, `<script id="%s" type="application/json">%s</script>`, PrefetchScriptID, prefetched)
		b.WriteString("</body></html>\n")

		_, err = io.WriteString(w, b.String())
		return err
	})
}

// Main renders the page content without the document around it. Client
// side transitions swap it into the <main> element.
func Main(p *intent.Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		writePage(&b, p)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writePage(b *strings.Builder, p *intent.Page) {
	fmt.Fprintf(b, "<h1>%s</h1>", templ.EscapeString(p.Title))
	b.WriteString(richtext.ToHTML(p.Description))
	for _, shelf := range p.Shelves {
		fmt.Fprintf(b, "<section><h2>%s</h2><ul>", templ.EscapeString(shelf.Title))
		for _, l := range shelf.Items {
			b.WriteString("<li>")
			if l.Action.PageURL != "" {
				fmt.Fprintf(b, `<a href="%s"`, templ.EscapeString(l.Action.PageURL))
				if l.Action.IsModal() {
					b.WriteString(` data-presentation="modal"`)
				}
				fmt.Fprintf(b, ">%s</a>", templ.EscapeString(l.Title))
			} else {
				b.WriteString(templ.EscapeString(l.Title))
			}
			if l.Subtitle != "" {
				fmt.Fprintf(b, " <small>%s</small>", templ.EscapeString(l.Subtitle))
			}
			b.WriteString("</li>")
		}
		b.WriteString("</ul></section>")
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

// NotFound renders the 404 document.
func NotFound(url string) templ.Component {
	return message("Page not found", "Nothing lives at "+url+".")
}

// Failure renders the document for a failed page fetch.
func Failure(err error) templ.Component {
	return message("Something went wrong", err.Error())
}

func message(title, detail string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body><main><h1>%s</h1><p>%s</p></main></body></html>\n",
			templ.EscapeString(title), templ.EscapeString(title), templ.EscapeString(detail))
		return err
	})
}
