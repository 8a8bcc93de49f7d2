// Package handler contains the business logic invoked by the daemon's
// workers, keyed by request parameter variant.
package handler

import (
	"context"
	"fmt"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/finder"
)

// EmitFunc delivers one response toward the requesting client. Emitting the
// response with Last set completes the request.
type EmitFunc func(*api.Response) error

// Handler computes the responses for one request variant. Implementations
// must emit exactly one final response (Last or error) per request.
type Handler interface {
	Handle(ctx context.Context, req *api.Request, emit EmitFunc) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *api.Request, emit EmitFunc) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *api.Request, emit EmitFunc) error {
	return f(ctx, req, emit)
}

// Registry maps request types to their handlers. The registry is populated at
// startup and read-only afterwards, so it needs no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with the default handlers installed.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
	}
	r.Register(api.TypeFindFiles, HandlerFunc(handleFindFiles))
	// api.TypeCreate is reserved; requests for it get an unsupported_request
	// error until a handler exists.
	return r
}

// Register installs a handler for a request type.
func (r *Registry) Register(requestType string, h Handler) {
	r.handlers[requestType] = h
}

// Lookup returns the handler for a request type.
func (r *Registry) Lookup(requestType string) (Handler, bool) {
	h, ok := r.handlers[requestType]
	return h, ok
}

// handleFindFiles streams matching entries back one response per entry,
// followed by an empty final response.
func handleFindFiles(ctx context.Context, req *api.Request, emit EmitFunc) error {
	params, err := req.FindFiles()
	if err != nil {
		return err
	}

	err = finder.Find(ctx, params.Dir, params.Pattern, func(entry finder.Entry) error {
		resp, err := api.NewFindFilesResponse(req.ID, []api.Entry{{Path: entry.Path, Dir: entry.Dir}}, false)
		if err != nil {
			return err
		}
		return emit(resp)
	})
	if err != nil {
		return fmt.Errorf("find failed in %s: %w", params.Dir, err)
	}

	final, err := api.NewFindFilesResponse(req.ID, nil, true)
	if err != nil {
		return err
	}
	return emit(final)
}
