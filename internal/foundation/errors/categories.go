package errors

import (
	"log/slog"
	"maps"
	"net/http"
	"slices"
)

// ErrorCategory groups errors by the part of kart that raised them. The
// category decides the CLI exit code, the HTTP status while serving and the
// default severity.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	CategoryContent ErrorCategory = "content" // miners and content modifiers
	CategoryRouting ErrorCategory = "routing" // mappers and map modifiers
	CategoryRender  ErrorCategory = "render"

	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryWatch      ErrorCategory = "watch"
	CategoryNetwork    ErrorCategory = "network"
	CategoryEventStore ErrorCategory = "eventstore"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

type categoryTraits struct {
	exitCode int
	status   int
	severity ErrorSeverity
}

// Exit codes: 2 usage, 7 config, 8 network, 10 internal, 11 build, 12 runtime.
var traits = map[ErrorCategory]categoryTraits{
	CategoryConfig:     {7, http.StatusBadRequest, SeverityFatal},
	CategoryValidation: {2, http.StatusBadRequest, SeverityFatal},
	CategoryNotFound:   {1, http.StatusNotFound, SeverityError},
	CategoryContent:    {11, http.StatusUnprocessableEntity, SeverityWarning},
	CategoryRouting:    {11, http.StatusUnprocessableEntity, SeverityError},
	CategoryRender:     {11, http.StatusUnprocessableEntity, SeverityError},
	CategoryFileSystem: {11, http.StatusInternalServerError, SeverityError},
	CategoryWatch:      {12, http.StatusServiceUnavailable, SeverityWarning},
	CategoryNetwork:    {8, http.StatusBadGateway, SeverityError},
	CategoryEventStore: {1, http.StatusInternalServerError, SeverityError},
	CategoryRuntime:    {12, http.StatusServiceUnavailable, SeverityFatal},
	CategoryInternal:   {10, http.StatusInternalServerError, SeverityFatal},
}

func (c ErrorCategory) traits() categoryTraits {
	if t, ok := traits[c]; ok {
		return t
	}
	return categoryTraits{1, http.StatusInternalServerError, SeverityError}
}

// ExitCode is the process exit code for an error of this category.
func (c ErrorCategory) ExitCode() int { return c.traits().exitCode }

// HTTPStatus is the response status for an error of this category.
func (c ErrorCategory) HTTPStatus() int { return c.traits().status }

// DefaultSeverity is the severity NewError starts with.
func (c ErrorCategory) DefaultSeverity() ErrorSeverity { return c.traits().severity }

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // stops the command
	SeverityError   ErrorSeverity = "error"   // fails the current cycle or request
	SeverityWarning ErrorSeverity = "warning" // the cycle continues without the item
	SeverityInfo    ErrorSeverity = "info"
)

// Level maps the severity to a slog level.
func (s ErrorSeverity) Level() slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ErrorContext carries structured details such as the file, key or renderer
// an error belongs to.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

func (c ErrorContext) clone() ErrorContext {
	out := make(ErrorContext, len(c)+1)
	maps.Copy(out, c)
	return out
}

// attrs returns the context as slog attributes in key order.
func (c ErrorContext) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, len(c))
	for _, k := range slices.Sorted(maps.Keys(c)) {
		out = append(out, slog.Any(k, c[k]))
	}
	return out
}
