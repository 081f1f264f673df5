package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/recap/ai"
	"github.com/hrygo/recap/ai/metrics"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		logger := logging.Default()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
		stack, err := ai.NewStack(ctx, ai.NewConfigFromProfile(instanceProfile), exporter, logger)
		if err != nil {
			return fmt.Errorf("init summarizer: %w", err)
		}
		defer stack.Close()

		s, err := server.NewServer(ctx, instanceProfile, stack.Orchestrator, exporter, logger)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}

		// Warmup is best-effort and must not delay startup.
		go func() {
			warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
			defer warmupCancel()
			stack.Warmup(warmupCtx)
		}()

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			s.Shutdown(context.Background())
			cancel()
		}()

		printGreetings(cmd, instanceProfile.Version, stack.Models)
		if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start server: %w", err)
		}
		<-ctx.Done()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 28081, "port of server")
	for _, name := range []string{"addr", "port"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func printGreetings(cmd *cobra.Command, v string, models []string) {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "recap %s started\n", v)
	if len(models) == 0 {
		fmt.Fprintln(out, "No AI model configured: summaries use fallback analysis.")
		return
	}
	for _, m := range models {
		fmt.Fprintf(out, "Model: %s\n", m)
	}
}
