// Package rpc implements the namespaced method dispatcher (C9) and its three
// transports: in-process, local HTTP, and MCP.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codecoder/codecoder/internal/apperr"
)

// Handler is a typed RPC method implementation. args is the raw JSON payload
// for the call; the return value is marshaled back to the caller as-is.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Dispatcher routes {namespace, method} calls to registered handlers. It is
// the single source of truth shared by all three transports, so a method
// registered once is reachable in-process, over HTTP, and over MCP.
type Dispatcher struct {
	mu      sync.RWMutex
	methods map[string]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{methods: make(map[string]Handler)}
}

// Register binds a dot-path method name (e.g. "task.create") to a handler.
// Registering the same name twice replaces the previous handler.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[method] = h
}

// Methods returns the registered method names, unordered.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.methods))
	for m := range d.methods {
		out = append(out, m)
	}
	return out
}

// Call dispatches one {method, args} request.
func (d *Dispatcher) Call(ctx context.Context, method string, args json.RawMessage) (any, error) {
	d.mu.RLock()
	h, ok := d.methods[method]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("rpc: unknown method %q: %w", method, apperr.ErrNotFound)
	}
	return h(ctx, args)
}

// Decode is a convenience helper handlers use to unmarshal their typed
// argument struct out of the raw JSON payload.
func Decode[T any](args json.RawMessage) (T, error) {
	var v T
	if len(args) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("rpc: decode args: %w: %v", apperr.ErrInvalidArgument, err)
	}
	return v, nil
}
