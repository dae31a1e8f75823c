package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// CLIErrorAdapter reports command errors and picks the exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a CLI adapter. In verbose mode the full cause
// chain is printed.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor returns 0 for nil, the category exit code for classified
// errors and 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if c, ok := AsClassified(err); ok {
		return c.Category().ExitCode()
	}
	return 1
}

// FormatError renders err for the terminal.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	if !ok {
		return "Error: " + err.Error()
	}
	if a.verbose {
		return "Error: " + c.Error()
	}
	if len(c.Context()) == 0 {
		return "Error: " + c.Message()
	}
	parts := make([]string, 0, len(c.Context()))
	for _, attr := range c.Context().attrs() {
		parts = append(parts, fmt.Sprintf("%s=%v", attr.Key, attr.Value.Any()))
	}
	return fmt.Sprintf("Error: %s (%s)", c.Message(), strings.Join(parts, " "))
}

// Report logs err, writes the user-facing message to out and returns the
// exit code.
func (a *CLIErrorAdapter) Report(out io.Writer, err error) int {
	if err == nil {
		return 0
	}
	level := slog.LevelError
	if c, ok := AsClassified(err); ok {
		level = c.Severity().Level()
	}
	a.logger.LogAttrs(context.Background(), level, "Command failed", slog.Any("error", err))
	_, _ = fmt.Fprintln(out, a.FormatError(err))
	return a.ExitCodeFor(err)
}
