// internal/reporting/artifacts.go
package reporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
)

// ArtifactWriter saves a screenshot and the HTML of the last active page.
type ArtifactWriter struct {
	dir    string
	logger *zap.Logger
}

// NewArtifactWriter creates a writer rooted at dir ("~" is expanded).
func NewArtifactWriter(dir string, logger *zap.Logger) (*ArtifactWriter, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand artifacts directory %s: %w", dir, err)
	}
	return &ArtifactWriter{dir: expanded, logger: logger.Named("artifacts")}, nil
}

// Capture writes both artifacts concurrently. Each is best effort: the paths of the
// artifacts that were written are returned together with the joined failures.
func (w *ArtifactWriter) Capture(ctx context.Context, page browser.Page, runID string) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory %s: %w", w.dir, err)
	}

	captures := []struct {
		name  string
		fetch func(context.Context) ([]byte, error)
	}{
		{runID + "-final.png", page.Screenshot},
		{runID + "-final.html", func(ctx context.Context) ([]byte, error) {
			html, err := page.Content(ctx)
			return []byte(html), err
		}},
	}

	paths := make([]string, len(captures))
	errs := make([]error, len(captures))
	// A failed screenshot must not cancel the HTML dump, so no group context.
	var g errgroup.Group
	for i, c := range captures {
		i, c := i, c
		g.Go(func() error {
			data, err := c.fetch(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("capture %s: %w", c.name, err)
				return nil
			}
			path := filepath.Join(w.dir, c.name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				errs[i] = fmt.Errorf("write %s: %w", path, err)
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	_ = g.Wait()

	var written []string
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		w.logger.Warn("Artifact capture incomplete.", zap.Error(err))
	}
	if len(written) > 0 {
		w.logger.Info("Artifacts written.", zap.Strings("paths", written))
	}
	return written, err
}
