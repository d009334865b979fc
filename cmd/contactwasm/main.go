//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"contact-form/config"
	"contact-form/internal/alerts"
	"contact-form/internal/debug"
	"contact-form/internal/dom/jsdom"
	"contact-form/internal/gateway"
	"contact-form/internal/logging"
	"contact-form/internal/submit"
)

const configElementID = "contact-form-config"

func main() {
	logger := logging.NewWithWriter(jsdom.Console{})
	doc := jsdom.New()

	doc.Ready(func() {
		cfg := loadFormConfig(doc, logger)
		debug.Default.SetLogger(logger)
		debug.SetEnabled(cfg.Debug)
		bindForms(context.Background(), doc, cfg, logger)
	})

	select {}
}

func loadFormConfig(doc *jsdom.Document, logger logging.Logger) config.FormConfig {
	var cfg config.FormConfig
	if el := doc.QuerySelector(`script[type="application/json"]#` + configElementID); el != nil {
		if err := json.Unmarshal([]byte(el.Text()), &cfg); err != nil {
			logger.Printf("contact form config ignored: %v", err)
		}
	}
	cfg = cfg.WithDefaults()
	cfg.Endpoint = resolve(doc.Location(), cfg.Endpoint)
	return cfg
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func bindForms(ctx context.Context, doc *jsdom.Document, cfg config.FormConfig, logger logging.Logger) {
	client := &gateway.Client{
		HTTPClient:  &http.Client{},
		Endpoint:    cfg.Endpoint,
		Token:       cfg.Nonce,
		TokenHeader: cfg.NonceHeader,
		Timeout:     cfg.Timeout(),
		Logger:      logger,
		Stopwatch:   debug.Default,
	}
	presenter := alerts.NewPresenter(doc, cfg.Markup, debug.Default)

	forms := doc.QuerySelectorAll(cfg.Markup.FormSelector)
	for _, form := range forms {
		ctrl, err := submit.New(submit.Options{
			Document:    doc,
			Form:        form,
			Gateway:     client,
			Presenter:   presenter,
			Markup:      cfg.Markup,
			Hold:        cfg.Hold(),
			RedirectURL: cfg.RedirectURL,
			Logger:      logger,
			Stopwatch:   debug.Default,
		})
		if err != nil {
			logger.Printf("skip contact form: %v", err)
			continue
		}
		ctrl.Bind(ctx)
	}
	debug.Default.Logf(debug.PhaseInfo, "init", "bound %d contact form(s)", len(forms))
}
