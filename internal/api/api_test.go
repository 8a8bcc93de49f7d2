package api

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFindFilesRequest(t *testing.T) {
	req, err := NewFindFilesRequest("/home/user", `\.go$`)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.Equal(t, TypeFindFiles, req.Type)

	params, err := req.FindFiles()
	require.NoError(t, err)
	assert.Equal(t, "/home/user", params.Dir)
	assert.Equal(t, `\.go$`, params.Pattern)
}

func TestFindFilesParamsWrongType(t *testing.T) {
	req := NewCreateRequest()
	_, err := req.FindFiles()
	assert.Error(t, err)
}

func TestNewFindFilesResponse(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		last    bool
	}{
		{name: "streamed entry", entries: []Entry{{Path: "/a/b.txt"}}, last: false},
		{name: "empty final", entries: nil, last: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestID := uuid.New()
			resp, err := NewFindFilesResponse(requestID, tt.entries, tt.last)
			require.NoError(t, err)
			assert.Equal(t, requestID, resp.RequestID)
			assert.Equal(t, tt.last, resp.Last)
			assert.Nil(t, resp.Error)

			result, err := resp.FindFilesResult()
			require.NoError(t, err)
			assert.Equal(t, len(tt.entries), len(result.Entries))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	requestID := uuid.New()
	resp := NewErrorResponse(requestID, ErrorCodeHandlerFailed, "it broke")
	assert.Equal(t, requestID, resp.RequestID)
	assert.True(t, resp.Last, "error responses are always final")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorCodeHandlerFailed, resp.Error.Code)
	assert.Equal(t, "it broke", resp.Error.Message)
}

func TestFindFilesResultEmptyParams(t *testing.T) {
	resp := &Response{RequestID: uuid.New(), Last: true}
	result, err := resp.FindFilesResult()
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}
