// File: cmd/launcher.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/browser/cdp"
	"github.com/xkilldash9x/lancet-cli/internal/browser/pw"
	"github.com/xkilldash9x/lancet-cli/internal/config"
)

// browserLauncher starts the browser engine selected by the configuration. Tests swap
// it for one that hands out an in-memory browser.
type browserLauncher interface {
	Launch(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.Browser, error)
}

type defaultBrowserLauncher struct{}

// NewBrowserLauncher returns the launcher used in production.
func NewBrowserLauncher() browserLauncher {
	return &defaultBrowserLauncher{}
}

func (l *defaultBrowserLauncher) Launch(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.Browser, error) {
	bc := cfg.Browser
	logger.Info("Launching browser.", zap.String("driver", bc.Driver), zap.Bool("headless", bc.Headless))

	switch bc.Driver {
	case config.DriverPlaywright:
		b, err := pw.Launch(ctx, pw.Options{
			Headless: bc.Headless,
			ExecPath: bc.ExecPath,
			Args:     bc.Args,
			Persona:  bc.Persona,
			Stealth:  bc.Stealth,
			Install:  bc.Install,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverChromedp, "":
		b, err := cdp.Launch(ctx, cdp.Options{
			Headless:    bc.Headless,
			ExecPath:    bc.ExecPath,
			UserDataDir: bc.UserDataDir,
			Args:        bc.Args,
			Persona:     bc.Persona,
			Stealth:     bc.Stealth,
			Debug:       bc.Debug,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported browser driver: %s", bc.Driver)
	}
}
