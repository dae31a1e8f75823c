// Package errors provides the classified error primitives used across kart.
//
// Errors carry a category (content, routing, render, watch, ...), a severity
// and structured context. The CLI adapter maps them to exit codes and the HTTP
// adapter maps them to status codes for the live server.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryContent, "parse front matter").
//		Warning().
//		WithContext("path", file).
//		WithCause(parseErr).
//		Build()
package errors
