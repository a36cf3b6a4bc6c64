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
	"moonpulse/internal/bot"
	"moonpulse/internal/config"
	"moonpulse/internal/handler"
	"moonpulse/internal/mcpserver"
	"moonpulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "moonpulse/docs"
)

// Upper bound for one HTTP answer, including narrative generation.
const requestTimeout = 2 * time.Minute

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	warmupFunc             = func(a *app.App, ctx context.Context) { go a.Warmup(ctx) }
	startRefresherFunc     = func(a *app.App, ctx context.Context, interval time.Duration) {
		if r := a.Refresher(interval); r != nil {
			go r.Start(ctx)
		}
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           moonpulse API
// @version         1.0
// @description     Answers free-text questions about crypto alerts, project summaries and social trends.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, app.ServiceName, app.Version)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	a := buildAppFunc(ctx, cfg, tracer)
	warmupFunc(a, ctx)
	startRefresherFunc(a, ctx, cfg.ToolManifestRefresh())

	if _, err := startTelegramBotFunc(cfg.TelegramBotToken, a.Service, requestTimeout); err != nil {
		log.Printf("Telegram bot disabled: %v", err)
	}

	r := newRouterFunc()
	r.Use(otelgin.Middleware(app.ServiceName))
	r.Use(handler.RequestTimeout(requestTimeout))

	handler.New(tracer, a.Service, a.Catalog()).RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.MCPHTTPEnabled {
		mcpHandler := mcpserver.New(tracer, a.Service, a.Catalog(), app.Version, cfg.MCPRequestTimeout()).HTTPHandler()
		r.Any("/mcp", gin.WrapH(mcpHandler))
		log.Println("MCP streamable HTTP endpoint mounted at /mcp")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		log.Printf("Listening on %s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
