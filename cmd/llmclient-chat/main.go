// Command llmclient-chat is a minimal demonstration server: it builds a
// Provider from the environment and exposes a single streaming
// completion route over chi.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/llmclient/llmclient/factory"
	"github.com/llmclient/llmclient/internal/config"
	"github.com/llmclient/llmclient/internal/server"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	prov, err := factory.FromEnv()
	if err != nil {
		log.Fatalf("failed to build provider from environment: %v", err)
	}

	srv := server.New(prov)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("llmclient-chat listening on :%d using provider %q", cfg.Server.Port, prov.Name())

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
