package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"moonpulse/internal/app"
	"moonpulse/internal/config"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// Bootstrap wires an App for one CLI invocation.
type Bootstrap func(ctx context.Context) (*app.App, error)

// DefaultBootstrap loads configuration from the environment.
func DefaultBootstrap(tracer trace.Tracer) Bootstrap {
	return func(ctx context.Context) (*app.App, error) {
		return app.Build(ctx, config.Load(), tracer), nil
	}
}

// ErrQueryFailed is returned when the answer envelope carries an error.
var ErrQueryFailed = errors.New("query failed")

// NewRootCmd creates the root command.
func NewRootCmd(boot Bootstrap) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "moonpulse",
		Short:         "moonpulse - crypto social trend answers",
		Long:          "moonpulse answers free-text questions about crypto alerts, project summaries and social trends.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newAskCmd(boot))
	rootCmd.AddCommand(newToolsCmd(boot))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newAskCmd(boot Bootstrap) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [QUESTION...]",
		Short: "Answer one question and print the response envelope",
		Long: `Answer one free-text question and print the JSON envelope.
Example: moonpulse ask "BTC social trend over 14 days"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := boot(ctx)
			if err != nil {
				return err
			}
			resp := a.Service.Ask(ctx, strings.Join(args, " "))
			if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Failed() {
				return fmt.Errorf("%w: %s", ErrQueryFailed, resp.Error.Message)
			}
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 90*time.Second, "Overall time limit for the answer")
	return cmd
}

func newToolsCmd(boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the upstream tools advertised by the tool manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx)
			if err != nil {
				return err
			}
			source := a.Catalog()
			if source == nil {
				return errors.New("tool manifest is disabled (TOOL_MANIFEST_ENABLED=false)")
			}
			catalog, err := source.Catalog(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", catalog.Name(), catalog.Version())
			for _, t := range catalog.Tools() {
				fmt.Fprintf(out, "  %-36s %s\n", t.Name, firstLine(t.Description))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", app.ServiceName, app.Version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
