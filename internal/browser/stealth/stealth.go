package stealth

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

//go:embed evasions.js
var evasionsScript string

// personaPayload is the subset of the persona the in-page script reads.
type personaPayload struct {
	Platform  string   `json:"platform"`
	Languages []string `json:"languages"`
	Width     int64    `json:"width"`
	Height    int64    `json:"height"`
}

// Script renders the evasions for p as a self-contained script suitable for
// evaluation before any page script runs.
func Script(p schemas.Persona) (string, error) {
	payload, err := json.ConfigCompatibleWithStandardLibrary.Marshal(personaPayload{
		Platform:  p.Platform,
		Languages: p.Languages,
		Width:     p.Width,
		Height:    p.Height,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("(function(persona){%s})(%s);", evasionsScript, payload), nil
}

// Apply builds the CDP actions that present p to the site: user agent and client
// hints, viewport, timezone, locale, Accept-Language and the evasions script.
func Apply(p schemas.Persona, logger *zap.Logger) chromedp.Tasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
		zap.String("timezone", p.Timezone),
	)

	ua := emulation.SetUserAgentOverride(p.UserAgent).
		WithPlatform(p.Platform).
		WithAcceptLanguage(p.AcceptLanguage())
	if md := userAgentMetadata(p); md != nil {
		ua = ua.WithUserAgentMetadata(md)
	}

	tasks := chromedp.Tasks{
		ua,
		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := Script(p)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}
	if p.Width > 0 && p.Height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1, p.Mobile))
	}
	if p.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.Timezone))
	}
	if p.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(p.Locale))
	}
	if len(p.Languages) > 0 {
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": p.AcceptLanguage(),
		}))
	}
	return tasks
}

func userAgentMetadata(p schemas.Persona) *emulation.UserAgentMetadata {
	hints := p.ClientHintsData
	if hints == nil {
		return nil
	}
	brands := make([]*emulation.UserAgentBrandVersion, 0, len(hints.Brands))
	for _, b := range hints.Brands {
		brands = append(brands, &emulation.UserAgentBrandVersion{Brand: b.Brand, Version: b.Version})
	}
	return &emulation.UserAgentMetadata{
		Brands:          brands,
		Platform:        hints.Platform,
		PlatformVersion: hints.PlatformVersion,
		Architecture:    hints.Architecture,
		Bitness:         hints.Bitness,
		Mobile:          hints.Mobile,
	}
}
