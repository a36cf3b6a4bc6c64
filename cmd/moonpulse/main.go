package main

import (
	"context"
	"fmt"
	"os"

	"moonpulse/internal/cli"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	_ = godotenv.Load()

	root := cli.NewRootCmd(cli.DefaultBootstrap(trace.NewNoopTracerProvider().Tracer("moonpulse-cli")))
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
