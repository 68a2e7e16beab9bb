package accumulator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmclient/llmclient/accumulator"
	"github.com/llmclient/llmclient/llmtypes"
)

func TestAccumulatorTextViaOutputItemAddedThenDeltas(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.OutputItemAddedText())
	acc.ProcessEvent(llmtypes.ContentDelta("Hello, "))
	acc.ProcessEvent(llmtypes.ContentDelta("world."))
	acc.ProcessEvent(llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{InputTokens: 3, OutputTokens: 5}))

	resp, err := acc.Finalize()
	require.NoError(t, err)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "Hello, world.", resp.Content())
	assert.Equal(t, llmtypes.FinishStop, resp.FinishReason)
	assert.Equal(t, 3, resp.Usage.InputTokens)
}

func TestAccumulatorStrayDeltaWithoutAnnouncementStartsNewItem(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.ContentDelta("stray"))

	resp, err := acc.Finalize()
	require.NoError(t, err)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, llmtypes.OutputItemText, resp.Output[0].Kind)
	assert.Equal(t, "stray", resp.Output[0].Content)
}

func TestAccumulatorEmptyDeltaDropped(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.OutputItemAddedText())
	acc.ProcessEvent(llmtypes.ContentDelta(""))
	acc.ProcessEvent(llmtypes.ContentDelta("real"))

	resp, err := acc.Finalize()
	require.NoError(t, err)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "real", resp.Output[0].Content)
}

func TestAccumulatorFunctionCallDoesNotPushUntilComplete(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.OutputItemAddedFunctionCall("get_weather", "fc_1"))
	resp, err := acc.Finalize()
	require.NoError(t, err)
	assert.Empty(t, resp.Output)

	acc2 := accumulator.New()
	acc2.ProcessEvent(llmtypes.OutputItemAddedFunctionCall("get_weather", "fc_1"))
	call := llmtypes.FunctionCall{ID: "fc_1", CallID: "call_1", Name: "get_weather", Arguments: `{"city":"SF"}`}
	acc2.ProcessEvent(llmtypes.FunctionCallComplete(call))
	resp2, err := acc2.Finalize()
	require.NoError(t, err)
	require.Len(t, resp2.Output, 1)
	assert.Equal(t, llmtypes.OutputItemFunctionCall, resp2.Output[0].Kind)
	assert.Equal(t, call, resp2.Output[0].Call)
	assert.Equal(t, []llmtypes.FunctionCall{call}, resp2.FunctionCalls())
}

func TestAccumulatorTextAndFunctionCallOrderingPreserved(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.OutputItemAddedText())
	acc.ProcessEvent(llmtypes.ContentDelta("thinking..."))
	acc.ProcessEvent(llmtypes.OutputItemAddedFunctionCall("lookup", "fc_1"))
	acc.ProcessEvent(llmtypes.FunctionCallComplete(llmtypes.FunctionCall{ID: "fc_1", Name: "lookup"}))
	acc.ProcessEvent(llmtypes.OutputItemAddedText())
	acc.ProcessEvent(llmtypes.ContentDelta("done"))

	resp, err := acc.Finalize()
	require.NoError(t, err)
	require.Len(t, resp.Output, 3)
	assert.Equal(t, llmtypes.OutputItemText, resp.Output[0].Kind)
	assert.Equal(t, llmtypes.OutputItemFunctionCall, resp.Output[1].Kind)
	assert.Equal(t, llmtypes.OutputItemText, resp.Output[2].Kind)
	assert.Equal(t, "thinking...done", resp.Content())
}

func TestAccumulatorErrorEventFailsFinalize(t *testing.T) {
	acc := accumulator.New()
	acc.ProcessEvent(llmtypes.OutputItemAddedText())
	acc.ProcessEvent(llmtypes.ContentDelta("partial"))
	acc.ProcessEvent(llmtypes.StreamError(assertErr{}))

	resp, err := acc.Finalize()
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestAccumulatorTwoIndependentInstancesYieldEqualResponses(t *testing.T) {
	events := []llmtypes.StreamEvent{
		llmtypes.OutputItemAddedText(),
		llmtypes.ContentDelta("hi"),
		llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{InputTokens: 1}),
	}

	run := func() *llmtypes.CompleteResponse {
		acc := accumulator.New()
		for _, ev := range events {
			acc.ProcessEvent(ev)
		}
		resp, err := acc.Finalize()
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, run(), run())
}

func TestDrainConsumesChannelToCompletion(t *testing.T) {
	ch := make(chan llmtypes.StreamEvent, 4)
	ch <- llmtypes.OutputItemAddedText()
	ch <- llmtypes.ContentDelta("streamed")
	ch <- llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{})
	close(ch)

	resp, err := accumulator.Drain(ch)
	require.NoError(t, err)
	assert.Equal(t, "streamed", resp.Content())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
