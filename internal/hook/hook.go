// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package hook is the explicit notification registry the submission
// pipeline emits into. Subscribers register at startup and are called
// synchronously, in priority order, on the request goroutine.
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Notification points emitted by the submission pipeline.
const (
	// SubmissionInvalid fires when a posted form fails validation.
	SubmissionInvalid = "form.submission_invalid"
	// SubmissionValid fires after a valid submission has been persisted.
	SubmissionValid = "form.submission_valid"
)

// Func handles one notification. Returning an error stops the chain.
type Func func(ctx context.Context, payload any) error

// Handler wraps a Func with metadata.
type Handler struct {
	Name       string // Name of the handler for debugging
	Subscriber string // Component that registered the handler
	Priority   int    // Lower priority runs first (default: 0)
	Fn         Func
}

// Registry manages handler registration and dispatch.
type Registry struct {
	handlers map[string][]Handler
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register adds a handler for the given notification.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := append(r.handlers[name], h)
	slices.SortStableFunc(handlers, func(a, b Handler) int { return a.Priority - b.Priority })
	r.handlers[name] = handlers

	r.logger.Debug("hook registered",
		"hook", name,
		"handler", h.Name,
		"subscriber", h.Subscriber,
		"priority", h.Priority,
	)
}

// RegisterFunc registers fn with default priority.
func (r *Registry) RegisterFunc(name, handlerName, subscriber string, fn Func) {
	r.Register(name, Handler{Name: handlerName, Subscriber: subscriber, Fn: fn})
}

// Notify calls every handler registered for name, in priority order.
// The first handler error stops dispatch and is returned wrapped.
func (r *Registry) Notify(ctx context.Context, name string, payload any) error {
	r.mu.RLock()
	handlers := slices.Clone(r.handlers[name])
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	r.logger.Debug("dispatching hook", "hook", name, "handlers", len(handlers))

	for _, h := range handlers {
		if err := h.Fn(ctx, payload); err != nil {
			r.logger.Error("hook handler error",
				"hook", name,
				"handler", h.Name,
				"subscriber", h.Subscriber,
				"error", err,
			)
			return fmt.Errorf("hook %s handler %s: %w", name, h.Name, err)
		}
	}
	return nil
}

// HasHandlers returns true if there are handlers registered for name.
func (r *Registry) HasHandlers(name string) bool {
	return r.HandlerCount(name) > 0
}

// HandlerCount returns the number of handlers registered for name.
func (r *Registry) HandlerCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[name])
}
