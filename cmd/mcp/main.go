package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moonpulse/internal/app"
	"moonpulse/internal/config"
	"moonpulse/internal/mcpserver"
	"moonpulse/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	buildAppFunc   = app.Build
	runStdioFunc   = func(s *mcpserver.Server, ctx context.Context) error { return s.RunStdio(ctx) }
	serveHTTPFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	exitFunc       = os.Exit
)

func main() {
	// stdout carries the protocol on stdio; keep logs on stderr.
	log.SetOutput(os.Stderr)
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, tracer, err := initTracerFunc(ctx, app.ServiceName+"-mcp", app.Version)
	if err != nil {
		log.Printf("failed to initialize tracer: %v", err)
		exitFunc(1)
		return
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	a := buildAppFunc(ctx, cfg, tracer)
	server := mcpserver.New(tracer, a.Service, a.Catalog(), app.Version, cfg.MCPRequestTimeout())

	if err := run(ctx, cfg, server); err != nil {
		log.Printf("mcp server stopped: %v", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, cfg *config.Config, server *mcpserver.Server) error {
	if cfg.MCPTransport != "http" {
		log.Println("Serving MCP over stdio")
		return runStdioFunc(server, ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort),
		Handler:           server.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving MCP over streamable HTTP on %s", srv.Addr)
	if err := serveHTTPFunc(srv); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
