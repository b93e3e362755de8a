// Command sentryfeed runs the risk-intelligence pipeline as a long-lived
// process: load configuration, construct the pipeline bottom-up, start
// the operator WebSocket feed, and block until an interrupt signal drains
// in-flight work and flushes the alert sink. Wiring order and flag/env
// style mirror orbo's cmd/orbo/main.go.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"sentryfeed/internal/config"
	"sentryfeed/internal/pipeline"
	"sentryfeed/internal/semantic"
	"sentryfeed/internal/wsfeed"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	listenAddr := flag.String("listen", ":8081", "address for the operator WebSocket feed")
	semanticTarget := flag.String("semantic-backend", "", "target for the semantic VLM backend (empty keeps the configured semantic.backend_target)")
	flag.Parse()

	logger := log.New(os.Stderr, "[sentryfeed] ", log.Ltime)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *semanticTarget != "" {
		cfg.Semantic.BackendTarget = *semanticTarget
		cfg.Semantic.Enabled = true
	}

	var backend semantic.Backend
	if cfg.Semantic.Enabled && cfg.Semantic.BackendTarget != "" && cfg.Semantic.BackendKind == "http" {
		backend = semantic.NewHTTPBackend(cfg.Semantic.BackendTarget, logger)
	} else if cfg.Semantic.Enabled && cfg.Semantic.BackendTarget != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gb, err := semantic.NewGRPCBackend(ctx, cfg.Semantic.BackendTarget, "/sentryfeed.Semantic/Infer", logger)
		if err != nil {
			logger.Printf("semantic backend unavailable, disabling semantic execution: %v", err)
		} else {
			backend = gb
		}
	}

	pl, err := pipeline.New(cfg, backend, logger)
	if err != nil {
		logger.Fatalf("pipeline: %v", err)
	}

	hub := wsfeed.NewHub(logger)
	stopFeed := make(chan struct{})
	go hub.Bridge(pl.Alerts, pl.Summaries, pl.Objects, stopFeed)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Path[len("/feed/"):]
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("websocket upgrade failed: %v", err)
			return
		}
		hub.Register(channel, conn)
	})
	server := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("feed server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Print("shutting down")
	close(stopFeed)
	server.Close()
	pl.Stop()
}
