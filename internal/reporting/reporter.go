// -- internal/reporting/reporter.go --
package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// Reporter writes a finished run report and returns where it went.
type Reporter interface {
	Write(ctx context.Context, report *schemas.RunReport) (string, error)
}

// Destination for reports written to standard output.
const StdoutDestination = "stdout"

// New creates a reporter for the given format. An empty output or "stdout" writes to
// standard output; anything else is a directory that receives one file per run.
func New(format, output string, logger *zap.Logger) (Reporter, error) {
	var dir string
	if output != "" && output != StdoutDestination {
		expanded, err := homedir.Expand(output)
		if err != nil {
			return nil, fmt.Errorf("failed to expand report directory %s: %w", output, err)
		}
		dir = expanded
	}

	switch format {
	case "json", "":
		return &JSONReporter{dir: dir, stdout: os.Stdout, logger: logger.Named("reporter")}, nil
	case "text":
		return &TextReporter{dir: dir, stdout: os.Stdout}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// JSONReporter serialises the run report as indented JSON.
// It is safe for concurrent use.
type JSONReporter struct {
	dir    string
	stdout io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewJSONReporter creates a reporter that writes into dir, or to w when dir is empty.
func NewJSONReporter(dir string, w io.Writer, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{dir: dir, stdout: w, logger: logger.Named("reporter")}
}

// Write encodes the report. The returned string is the file path, or "stdout".
func (r *JSONReporter) Write(ctx context.Context, report *schemas.RunReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload := struct {
		*schemas.RunReport
		Outcome schemas.RunOutcome `json:"outcome"`
	}{report, report.Outcome()}

	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode run report: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeOut(r.dir, r.stdout, reportName(report, "json"), data)
}

// TextReporter renders a short per-date summary table.
type TextReporter struct {
	dir    string
	stdout io.Writer
	mu     sync.Mutex
}

// NewTextReporter creates a text reporter that writes into dir, or to w when dir is empty.
func NewTextReporter(dir string, w io.Writer) *TextReporter {
	return &TextReporter{dir: dir, stdout: w}
}

func (r *TextReporter) Write(ctx context.Context, report *schemas.RunReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s): %s\n", report.RunID, report.Query, report.Outcome())
	if report.Fatal != "" {
		fmt.Fprintf(&b, "Fatal: %s: %s\n", report.Fatal, report.FatalMessage)
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATE\tERRORS")
	for _, a := range report.Attempts {
		kinds := make([]string, len(a.Errors))
		for i, k := range a.Errors {
			kinds[i] = string(k)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Date, a.FinalState, strings.Join(kinds, ","))
	}
	tw.Flush()
	for _, p := range report.Artifacts {
		fmt.Fprintf(&b, "Artifact: %s\n", p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeOut(r.dir, r.stdout, reportName(report, "txt"), []byte(b.String()))
}

func reportName(report *schemas.RunReport, ext string) string {
	return fmt.Sprintf("lancet-%s.%s", report.RunID, ext)
}

func writeOut(dir string, stdout io.Writer, name string, data []byte) (string, error) {
	if dir == "" {
		if _, err := stdout.Write(data); err != nil {
			return "", fmt.Errorf("failed to write report to stdout: %w", err)
		}
		return StdoutDestination, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}
