package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/llmclient/llmclient/internal/stream"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/prompt"
)

// completeMessage is one conversation turn in the wire request body.
type completeMessage struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// completeRequest is the JSON body POST /v1/complete accepts: a model
// name and an ordered list of messages, translated into a Prompt before
// being handed to the Provider.
type completeRequest struct {
	Model    string            `json:"model"`
	Messages []completeMessage `json:"messages"`
}

func (req completeRequest) toLLMRequest() *llmtypes.LLMRequest {
	p := prompt.New()
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			p.System(m.Content)
		case "assistant":
			p.WithAssistant(m.Content)
		default:
			p.WithUser(m.Content)
		}
	}
	return &llmtypes.LLMRequest{Model: req.Model, Input: p.Items(), Stream: true}
}

// handleHealth responds with a simple JSON status indicating the server
// is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// handleComplete handles POST /v1/complete: it decodes the request,
// builds a Prompt, dispatches to the configured Provider, and streams
// the canonical StreamEvent sequence back as SSE.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	w.Header().Set("X-LLMClient-Provider", s.prov.Name())
	w.Header().Set("X-LLMClient-Model", req.Model)

	resp, err := s.prov.Generate(r.Context(), req.toLLMRequest())
	if err != nil {
		log.Printf("provider error: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "provider error: " + err.Error(),
		})
		return
	}

	if err := stream.Write(w, resp.Stream()); err != nil {
		log.Printf("stream write error: %v", err)
	}
}
