package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/metrics"
	"github.com/simonvc/rentledger/internal/server"
	"github.com/simonvc/rentledger/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") || cfg.Server.Addr == "" {
			cfg.Server.Addr = serveAddr
		}

		st, err := store.Open(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		publisher := newPublisher(zlog)
		defer publisher.Close()

		srv := server.New(st, cfg.Server.Addr, serverOptions(publisher, zlog)...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		zlog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return <-errCh
	},
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// log publisher otherwise.
func newPublisher(logger *zap.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) > 0 {
		logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic_prefix", cfg.Kafka.TopicPrefix))
		return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	}
	return events.NewLogPublisher(logger)
}

func serverOptions(publisher events.Publisher, logger *zap.Logger) []server.Option {
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithPublisher(publisher),
		server.WithCashAccount(cfg.Ledger.CashAccount),
	}
	if cfg.Metrics.Enabled {
		// the default registry also carries the Go runtime and process collectors
		opts = append(opts, server.WithMetrics(
			metrics.NewMetrics(),
			prometheus.DefaultGatherer,
		))
	}
	return opts
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8888", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
