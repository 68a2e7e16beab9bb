package stream_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmclient/llmclient/internal/stream"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
)

func TestWriteEmitsDeltaThenDoneThenSentinel(t *testing.T) {
	ch := make(chan response.StreamItem, 3)
	ch <- response.StreamItem{Event: llmtypes.OutputItemAddedText()}
	ch <- response.StreamItem{Event: llmtypes.ContentDelta("hi")}
	ch <- response.StreamItem{Event: llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{InputTokens: 3, OutputTokens: 5})}
	close(ch)

	rec := httptest.NewRecorder()
	err := stream.Write(rec, ch)
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"output_item_added"`)
	assert.Contains(t, body, `"delta":"hi"`)
	assert.Contains(t, body, `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestWriteReturnsErrorWithoutSentinelOnMidStreamError(t *testing.T) {
	ch := make(chan response.StreamItem, 1)
	ch <- response.StreamItem{Err: assertErr{}}
	close(ch)

	rec := httptest.NewRecorder()
	err := stream.Write(rec, ch)
	assert.Error(t, err)
	assert.NotContains(t, rec.Body.String(), "[DONE]")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
