// Package middleware provides an interception chain around a question
// episode: validation, logging, and error handling hooks that run before
// and after the reasoning core.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWwei/rag-agent/errors"
	"github.com/MrWwei/rag-agent/message"
)

// Context represents the middleware execution context
type Context struct {
	// Original user question
	Input string

	// Messages before processing
	Messages []*message.Message

	// Final assistant response
	Response *message.Message

	// Error from execution
	Error error

	// Metadata for passing data between middlewares
	Metadata map[string]any

	context context.Context
}

// NewContext creates a new middleware context
func NewContext(ctx context.Context) *Context {
	return &Context{
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	return c.context
}

// Middleware intercepts a question episode. Returning an error stops the
// chain.
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string

	// Execute runs the middleware logic, calling next to continue the chain
	Execute(ctx *Context, next Handler) error
}

// Handler is the function called to pass control to the next middleware
type Handler func(*Context) error

// Chain represents a sequence of middleware to be executed
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Add appends a middleware to the chain
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// List returns the middlewares in execution order.
func (c *Chain) List() []Middleware {
	return append([]Middleware(nil), c.middlewares...)
}

// Execute runs all middlewares in the chain
func (c *Chain) Execute(ctx *Context, finalHandler Handler) error {
	return c.executeMiddleware(ctx, 0, finalHandler)
}

func (c *Chain) executeMiddleware(ctx *Context, index int, finalHandler Handler) error {
	if index >= len(c.middlewares) {
		return finalHandler(ctx)
	}

	nextHandler := func(ctx *Context) error {
		return c.executeMiddleware(ctx, index+1, finalHandler)
	}

	return c.middlewares[index].Execute(ctx, nextHandler)
}

// RequestLogger logs incoming questions
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the question
func (m *RequestLogger) Execute(ctx *Context, next Handler) error {
	if m.logger != nil {
		m.logger.Info("question received", "input", ctx.Input)
	}
	return next(ctx)
}

// ResponseLogger logs the final answer
type ResponseLogger struct {
	logger *slog.Logger
}

// NewResponseLogger creates a response logging middleware
func NewResponseLogger(logger *slog.Logger) *ResponseLogger {
	return &ResponseLogger{logger: logger}
}

// Name returns the middleware name
func (m *ResponseLogger) Name() string {
	return "ResponseLogger"
}

// Execute logs the response
func (m *ResponseLogger) Execute(ctx *Context, next Handler) error {
	err := next(ctx)
	if m.logger != nil && ctx.Response != nil {
		m.logger.Info("answer generated", "length", len(ctx.Response.Content))
	}
	return err
}

// ErrorHandler handles errors in the middleware chain
type ErrorHandler struct {
	handler func(error) error
}

// NewErrorHandler creates an error handling middleware
func NewErrorHandler(handler func(error) error) *ErrorHandler {
	return &ErrorHandler{handler: handler}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute handles errors from downstream middlewares
func (m *ErrorHandler) Execute(ctx *Context, next Handler) error {
	err := next(ctx)
	if err != nil && m.handler != nil {
		return m.handler(err)
	}
	return err
}

// InputValidator rejects questions before they reach the backends.
type InputValidator struct {
	validator func(string) error
}

// NewInputValidator creates an input validation middleware. A nil validator
// rejects blank input only.
func NewInputValidator(validator func(string) error) *InputValidator {
	if validator == nil {
		validator = func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("question cannot be empty: %w", errors.ErrInvalidInput)
			}
			return nil
		}
	}
	return &InputValidator{validator: validator}
}

// Name returns the middleware name
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute validates the input
func (m *InputValidator) Execute(ctx *Context, next Handler) error {
	if err := m.validator(ctx.Input); err != nil {
		return err
	}
	return next(ctx)
}
