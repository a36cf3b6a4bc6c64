package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"moonpulse/internal/app"
	"moonpulse/internal/bot"
	"moonpulse/internal/config"
	"moonpulse/internal/domain"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captured := stubServerDeps(t, &config.Config{
		Port:                    9999,
		TrendmoonRateLimitMin:   60,
		TrendmoonTimeoutSecs:    1,
		AnalysisWindows:         domain.DefaultWindows,
		DefaultLookbackDays:     20,
		MCPHTTPEnabled:          true,
		MCPRequestTimeoutSecs:   1,
		ToolManifestRefreshSecs: 30,
	})

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}

	if captured.addr != ":9999" {
		t.Fatalf("expected configured port, got %q", captured.addr)
	}
	if !captured.botStarted {
		t.Fatal("expected telegram bot startup to be attempted")
	}
	if captured.refreshInterval != 30*time.Second {
		t.Fatalf("expected 30s refresh interval, got %v", captured.refreshInterval)
	}
	if captured.handler == nil {
		t.Fatal("expected router to be installed")
	}
}

type capturedServer struct {
	addr            string
	botStarted      bool
	refreshInterval time.Duration
	handler         http.Handler
}

func stubServerDeps(t *testing.T, cfg *config.Config) *capturedServer {
	t.Helper()
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origWarmup := warmupFunc
	origRefresher := startRefresherFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc
	t.Cleanup(func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		warmupFunc = origWarmup
		startRefresherFunc = origRefresher
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	})

	captured := &capturedServer{}
	started := make(chan struct{})
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return cfg }
	initTracerFunc = func(ctx context.Context, service, version string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	warmupFunc = func(*app.App, context.Context) {}
	startRefresherFunc = func(a *app.App, ctx context.Context, interval time.Duration) {
		captured.refreshInterval = interval
	}
	startTelegramBotFunc = func(token string, asker bot.Asker, timeout time.Duration) (*tele.Bot, error) {
		captured.botStarted = true
		return nil, nil
	}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) { <-started }
	startHTTPServerFunc = func(srv *http.Server) error {
		captured.addr = srv.Addr
		captured.handler = srv.Handler
		close(started)
		return http.ErrServerClosed
	}
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }
	return captured
}
