package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "blogpost-backend/cmd/api"
	"blogpost-backend/internal/auth/rpc"
	"blogpost-backend/pkg/config"
	"blogpost-backend/pkg/database"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/natsconn"
	"blogpost-backend/pkg/tracing"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	Version = "0.1.0"
	appName = "blogpost-backend"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Blog post API with token auth and full-text search",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  func(cmd *cobra.Command, args []string) error { return migrate() },
		},
		&cobra.Command{
			Use:   "indexer",
			Short: "Consume post index events from Pub/Sub or NATS",
			RunE:  func(cmd *cobra.Command, args []string) error { return indexer() },
		},
		&cobra.Command{
			Use:   "reindex",
			Short: "Rebuild the search index from the posts table",
			RunE:  func(cmd *cobra.Command, args []string) error { return reindex() },
		},
		&cobra.Command{
			Use:   "token-responder",
			Short: "Answer token requests over NATS",
			RunE:  func(cmd *cobra.Command, args []string) error { return tokenResponder() },
		},
		tokenRequestCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// app holds what every subcommand sets up before doing its work.
type app struct {
	cfg      *config.Config
	ctx      context.Context
	shutdown []func()
}

func bootstrap() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(cfg.AppEnv, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	rt := &app{cfg: cfg, ctx: ctx}
	rt.onClose(stop)
	rt.onClose(logger.Sync)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
			Release:     appName + "@" + Version,
		}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		} else {
			rt.onClose(func() { sentry.Flush(2 * time.Second) })
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		rt.onClose(func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				logger.Warn("tracing shutdown", zap.Error(err))
			}
		})
	}
	return rt, nil
}

func (rt *app) onClose(fn func()) {
	rt.shutdown = append(rt.shutdown, fn)
}

func (rt *app) Close() {
	for i := len(rt.shutdown) - 1; i >= 0; i-- {
		rt.shutdown[i]()
	}
}

func (rt *app) openDB() (*gorm.DB, error) {
	db, err := database.Open(rt.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func serve() error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	db, err := rt.openDB()
	if err != nil {
		return err
	}
	if err := api.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	h, err := api.NewHandler(rt.ctx, rt.cfg, db)
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Start(rt.ctx, ":"+rt.cfg.Port)
}

func migrate() error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	db, err := rt.openDB()
	if err != nil {
		return err
	}
	if err := api.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database migrated")
	return nil
}

// indexer runs the index consumer as its own process. The local driver has
// no external queue to read from, so it is rejected.
func indexer() error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.EventsDriver == config.EventsDriverLocal {
		return fmt.Errorf("EVENTS_DRIVER=%s is consumed inside the API process", rt.cfg.EventsDriver)
	}

	db, err := rt.openDB()
	if err != nil {
		return err
	}
	idx, _, err := api.NewIndexer(rt.ctx, rt.cfg, db)
	if err != nil {
		return err
	}
	bus, err := api.NewEventBus(rt.ctx, rt.cfg, idx)
	if err != nil {
		return err
	}
	defer bus.Close()

	logger.Info("index consumer started", zap.String("driver", rt.cfg.EventsDriver))
	return bus.Subscriber.Run(rt.ctx, idx)
}

func reindex() error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.SearchDriver == config.SearchDriverMemory {
		return fmt.Errorf("SEARCH_DRIVER=%s lives inside the API process and is rebuilt by serve on startup", rt.cfg.SearchDriver)
	}

	db, err := rt.openDB()
	if err != nil {
		return err
	}
	idx, _, err := api.NewIndexer(rt.ctx, rt.cfg, db)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := idx.Reindex(rt.ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	logger.Info("reindex complete", zap.Int("posts", n), zap.Duration("took", time.Since(start)))
	return nil
}

func tokenResponder() error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()

	db, err := rt.openDB()
	if err != nil {
		return err
	}
	conn, err := natsconn.Connect(rt.cfg.NATSURL, rt.cfg.ServiceName+"-token-responder")
	if err != nil {
		return err
	}
	defer conn.Close()

	responder := rpc.NewResponder(conn.Conn, rt.cfg.NATSTokenSubject, api.NewValidator(rt.cfg, db))
	if err := responder.Start(rt.ctx); err != nil {
		return err
	}
	defer responder.Stop()

	logger.Info("token responder started", zap.String("subject", rt.cfg.NATSTokenSubject))
	<-rt.ctx.Done()
	return nil
}

func tokenRequestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "token-request <get_token|introspect> [token]",
		Short: "Send a token request over NATS and print the reply",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			var tok string
			if len(args) == 2 {
				tok = args[1]
			}

			conn, err := natsconn.Connect(cfg.NATSURL, cfg.ServiceName+"-cli")
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			reply, err := rpc.NewClient(conn.Conn, cfg.NATSTokenSubject).Request(ctx, args[0], tok)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for a reply")
	return cmd
}
