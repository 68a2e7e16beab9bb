package server_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmclient/llmclient/internal/server"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
)

type fakeProvider struct {
	name string
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Generate(ctx context.Context, req *llmtypes.LLMRequest) (*response.Response, error) {
	ch := make(chan response.StreamItem, 2)
	ch <- response.StreamItem{Event: llmtypes.ContentDelta("hi there")}
	ch <- response.StreamItem{Event: llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{})}
	close(ch)
	return response.New(ch, func() {}), nil
}

func TestHandleCompleteStreamsSSE(t *testing.T) {
	srv := server.New(fakeProvider{name: "fake"})

	req := httptest.NewRequest("POST", "/v1/complete", strings.NewReader(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "fake", rec.Header().Get("X-LLMClient-Provider"))
	body := rec.Body.String()
	assert.Contains(t, body, `"delta":"hi there"`)
	assert.Contains(t, body, "data: [DONE]\n\n")
}

func TestHandleCompleteRejectsInvalidBody(t *testing.T) {
	srv := server.New(fakeProvider{name: "fake"})

	req := httptest.NewRequest("POST", "/v1/complete", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := server.New(fakeProvider{name: "fake"})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
