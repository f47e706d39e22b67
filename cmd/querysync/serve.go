package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/querysync-dev/querysync/internal/config"
	"github.com/querysync-dev/querysync/pkg/middleware"
	"github.com/querysync-dev/querysync/pkg/querystate"
	"github.com/querysync-dev/querysync/pkg/server"
	"github.com/querysync-dev/querysync/pkg/session"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		port       int
		host       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the querysync server",
		Long: `Start the querysync server with the demo application.

Configuration is read from querysync.json in the working directory;
flags override the file.

Examples:
  querysync serve
  querysync serve --port=9000
  querysync serve --config=deploy/querysync.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, port, host)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "Path to configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from querysync.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from querysync.json)")

	return cmd
}

func runServe(configPath string, port int, host string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	srv := server.New(&server.Config{
		Address:      cfg.Addr(),
		Store:        store,
		ResumeWindow: cfg.ResumeWindow(),
		DebugMode:    cfg.Debug,
		CheckOrigin:  originChecker(cfg.Server.AllowedOrigins),
	})
	srv.Metrics(middleware.NewMetrics())
	srv.Use(middleware.OpenTelemetry())
	srv.Setup(demoSetup)

	logger.Info("starting querysync", "addr", cfg.Addr(), "store", storeName(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func storeName(cfg *config.Config) string {
	if cfg.Session.Store == "" {
		return "memory"
	}
	return cfg.Session.Store
}

func buildStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Session.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		var opts []session.S3StoreOption
		if cfg.Session.Prefix != "" {
			opts = append(opts, session.WithS3Prefix(cfg.Session.Prefix))
		}
		return session.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Session.Bucket, opts...), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// demoSetup is the reference application: a search box, a page size, and a
// tag list bound to q, limit, and tags[].
func demoSetup(ctx *server.Ctx) {
	search := querystate.Use("q", "")
	limit := querystate.Use("limit", 25)
	tags := querystate.Use("tags", []string(nil))

	ctx.Handle("setQuery", func(ctx *server.Ctx, value []byte) error {
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		search.Set(v)
		return nil
	})

	ctx.Handle("setLimit", func(ctx *server.Ctx, value []byte) error {
		var v int
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		limit.Set(v)
		return nil
	})

	ctx.Handle("addTag", func(ctx *server.Ctx, value []byte) error {
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		tags.Update(func(cur []string) []string { return append(cur, v) })
		return nil
	})

	ctx.Handle("clear", func(ctx *server.Ctx, value []byte) error {
		search.Reset()
		limit.Reset()
		tags.Reset()
		return nil
	})
}
