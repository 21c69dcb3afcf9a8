//go:build js && wasm

// Package main is the in-browser storefront client. It takes over a
// server-rendered page and performs later navigations client side.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall/js"

	"github.com/basecamp/storefront/internal/browser/dom"
	"github.com/basecamp/storefront/internal/catalog"
	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/nav"
	"github.com/basecamp/storefront/internal/routing"
	"github.com/basecamp/storefront/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("storefront client failed to start", "error", err)
		return
	}
	select {}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()
	doc := js.Global().Get("document")

	router, err := routing.New(nil, "us")
	if err != nil {
		return err
	}
	cat, err := catalog.LoadCatalog("")
	if err != nil {
		return err
	}
	src, err := catalog.NewFixtureSource(cat, router)
	if err != nil {
		return err
	}

	prefetched := jet.NewPrefetched()
	if el := doc.Call("getElementById", server.PrefetchScriptID); !el.IsNull() {
		if err := prefetched.LoadJSON([]byte(el.Get("textContent").String())); err != nil {
			logger.Warn("ignoring prefetched intents", "error", err)
		}
	}

	j := jet.New(jet.Options{Logger: logger, Prefetched: prefetched})
	router.Register(j.Intents())
	catalog.Register(j.Intents(), src)

	b := dom.New("")
	history, err := nav.NewHistory[*intent.Page](b, b, b.Scrollable(), nav.WithLogger(logger))
	if err != nil {
		return err
	}

	var latest atomic.Uint64
	flow.Install(j, flow.Config{
		History:  history,
		Location: b,
		Update: func(u flow.Update) {
			latest.Store(u.Seq)
			go func() {
				p, err := u.Page.Await(ctx)
				if u.Seq < latest.Load() {
					return
				}
				if err != nil {
					render(doc, failure(err, b.Location()))
					return
				}
				render(doc, p)
			}()
		},
		DidEnterPage: func(p *intent.Page) {
			j.SetCurrentPage(p)
			if p != nil {
				doc.Set("title", p.Title)
			}
		},
		PresentModal: func(p *intent.Page) { presentModal(doc, p) },
		Logger:       logger,
	})

	interceptLinks(ctx, doc, j, logger)

	// The server already rendered this page; performing its route replaces
	// the entry with one carrying a state id, served from the prefetch.
	go func() {
		route := j.RouteURL(ctx, b.Location())
		if route == nil {
			return
		}
		action := route.Action
		if action == nil {
			action = &intent.FlowAction{Destination: route.Intent, PageURL: b.Location()}
		}
		j.Perform(ctx, action)
	}()
	return nil
}

func failure(err error, url string) *intent.Page {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound {
		return &intent.Page{Kind: intent.PageGeneric, Title: "Page not found", Description: "Nothing lives at " + url + "."}
	}
	return &intent.Page{Kind: intent.PageGeneric, Title: "Something went wrong", Description: err.Error()}
}

func html(p *intent.Page) string {
	var b strings.Builder
	if err := server.Main(p).Render(context.Background(), &b); err != nil {
		return ""
	}
	return b.String()
}

func render(doc js.Value, p *intent.Page) {
	el := doc.Call("querySelector", "main")
	if el.IsNull() {
		return
	}
	el.Set("innerHTML", html(p))
	doc.Get("body").Call("setAttribute", "data-page-kind", string(p.Kind))
}

func presentModal(doc js.Value, p *intent.Page) {
	dialog := doc.Call("createElement", "dialog")
	dialog.Set("innerHTML", html(p)+`<form method="dialog"><button>Close</button></form>`)
	var onClose js.Func
	onClose = js.FuncOf(func(js.Value, []js.Value) any {
		dialog.Call("remove")
		onClose.Release()
		return nil
	})
	dialog.Call("addEventListener", "close", onClose)
	doc.Get("body").Call("appendChild", dialog)
	dialog.Call("showModal")
}

// interceptLinks turns clicks on in-app links into FlowActions.
func interceptLinks(ctx context.Context, doc js.Value, j *jet.Jet, logger *slog.Logger) {
	onClick := js.FuncOf(func(_ js.Value, args []js.Value) any {
		ev := args[0]
		if ev.Get("defaultPrevented").Bool() || ev.Get("button").Int() != 0 ||
			ev.Get("metaKey").Bool() || ev.Get("ctrlKey").Bool() || ev.Get("shiftKey").Bool() {
			return nil
		}
		target := ev.Get("target")
		if target.Type() != js.TypeObject || target.Get("closest").IsUndefined() {
			return nil
		}
		a := target.Call("closest", "a[href]")
		if a.IsNull() {
			return nil
		}
		href := a.Call("getAttribute", "href").String()
		if !strings.HasPrefix(href, "/") {
			return nil
		}
		ev.Call("preventDefault")

		action := intent.FlowAction{Title: a.Get("textContent").String(), PageURL: href}
		if a.Call("getAttribute", "data-presentation").String() == "modal" {
			action.PresentationContext = intent.PresentModal
		}
		go func() {
			route := j.RouteURL(ctx, href)
			if route == nil {
				logger.Info("link not routable", "href", href)
				return
			}
			action.Destination = route.Intent
			j.Perform(ctx, action)
		}()
		return nil
	})
	doc.Call("addEventListener", "click", onClick)
}
