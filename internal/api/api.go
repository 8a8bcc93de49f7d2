// Package api defines the request/response envelopes exchanged between insh
// clients and the inshd daemon, and the codec that frames them on the wire.
//
// Each connection carries a sequence of newline-delimited JSON request
// envelopes. Every request produces one or more responses on the same
// connection; exactly one of them carries last=true.
package api

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request parameter variants.
const (
	// TypeFindFiles asks the daemon to find files by name pattern.
	TypeFindFiles = "find_files"
	// TypeCreate is a placeholder variant reserved for future write
	// operations. It has no fields and no registered handler yet.
	TypeCreate = "create"
)

// Error codes carried in error responses.
const (
	ErrorCodeUnsupported   = "unsupported_request"
	ErrorCodeHandlerFailed = "handler_failed"
)

// Request is the envelope for a single request. Immutable once constructed.
type Request struct {
	ID     uuid.UUID       `json:"id"`
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// FindFilesParams are the parameters of a find_files request.
type FindFilesParams struct {
	Dir     string `json:"dir"`
	Pattern string `json:"pattern"`
}

// NewFindFilesRequest builds a find_files request with a fresh id.
func NewFindFilesRequest(dir, pattern string) (*Request, error) {
	params, err := json.Marshal(FindFilesParams{Dir: dir, Pattern: pattern})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal find_files params: %w", err)
	}
	return &Request{
		ID:     uuid.New(),
		Type:   TypeFindFiles,
		Params: params,
	}, nil
}

// NewCreateRequest builds a create request with a fresh id.
func NewCreateRequest() *Request {
	return &Request{
		ID:   uuid.New(),
		Type: TypeCreate,
	}
}

// FindFiles decodes the params of a find_files request.
func (r *Request) FindFiles() (*FindFilesParams, error) {
	if r.Type != TypeFindFiles {
		return nil, fmt.Errorf("request %s has type %q, not %q", r.ID, r.Type, TypeFindFiles)
	}
	var params FindFilesParams
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to decode find_files params: %w", err)
	}
	return &params, nil
}

// Response is the envelope for one response to a request. A request with a
// streamed result produces several responses; the final one has Last set.
type Response struct {
	RequestID uuid.UUID       `json:"request_id"`
	Last      bool            `json:"last"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Entry is one filesystem entry in a find_files result.
type Entry struct {
	Path string `json:"path"`
	Dir  bool   `json:"dir,omitempty"`
}

// FindFilesResult is the params payload of a find_files response.
type FindFilesResult struct {
	Entries []Entry `json:"entries"`
}

// NewFindFilesResponse builds one response carrying a batch of entries.
func NewFindFilesResponse(requestID uuid.UUID, entries []Entry, last bool) (*Response, error) {
	params, err := json.Marshal(FindFilesResult{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal find_files result: %w", err)
	}
	return &Response{
		RequestID: requestID,
		Last:      last,
		Params:    params,
	}, nil
}

// NewErrorResponse builds a final error response for a request.
func NewErrorResponse(requestID uuid.UUID, code, message string) *Response {
	return &Response{
		RequestID: requestID,
		Last:      true,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// FindFilesResult decodes the params of a find_files response.
func (r *Response) FindFilesResult() (*FindFilesResult, error) {
	var result FindFilesResult
	if len(r.Params) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(r.Params, &result); err != nil {
		return nil, fmt.Errorf("failed to decode find_files result: %w", err)
	}
	return &result, nil
}
