// Package vcrtest provides recorded-HTTP cassette helpers for provider
// tests, so a provider's streaming HTTP call can be exercised end to
// end against a fixture instead of a live API.
package vcrtest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"
)

// NewRecorder opens (or creates) the cassette at path in the given
// mode and registers a cleanup that stops it — flushing newly recorded
// interactions to disk — when t finishes.
func NewRecorder(t *testing.T, path string, mode recorder.Mode) *recorder.Recorder {
	t.Helper()
	rec, err := recorder.New(path, recorder.WithMode(mode))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, rec.Stop())
	})
	return rec
}

// NewClient is a convenience wrapper returning the *http.Client backed
// by a fresh recorder over the cassette at path.
func NewClient(t *testing.T, path string, mode recorder.Mode) *http.Client {
	t.Helper()
	return NewRecorder(t, path, mode).GetDefaultClient()
}
