// Command recall serves the memory graph over the Model Context Protocol,
// speaking stdio for editor integration or streamable HTTP for shared use.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Protocol-Lattice/recall/src/memory/store"
	"github.com/Protocol-Lattice/recall/src/server"
)

const (
	cacheCapacity = 1024
	cacheTTL      = 5 * time.Minute
)

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	port := flag.String("port", "8081", "HTTP port (only used with --transport http)")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "recall",
	})

	// A missing .env is fine; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := store.ConfigFromEnv()
	if err != nil {
		logger.Fatal("configuration error", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect", "uri", cfg.URI, "err", err)
	}
	defer conn.Close(context.Background())

	memories := store.NewMemoryStore(conn,
		store.WithLogger(logger),
		store.WithCache(cacheCapacity, cacheTTL),
	)
	if err := memories.InitializeSchema(ctx); err != nil {
		logger.Fatal("schema initialization aborted", "err", err)
	}

	srv := server.New(memories)

	switch *transport {
	case "stdio":
		logger.Info("serving", "transport", "stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			logger.Fatal("server error", "err", err)
		}
	case "http":
		addr := ":" + *port
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil)
		logger.Info("serving", "transport", "http", "addr", addr)
		if err := http.ListenAndServe(addr, handler); err != nil {
			logger.Fatal("http server error", "err", err)
		}
	default:
		logger.Fatal("unknown transport", "transport", *transport)
	}
}
