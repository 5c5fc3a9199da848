package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cartel-sh/box/actions"
	"github.com/cartel-sh/box/hydration"
	"github.com/cartel-sh/box/lens"
	"github.com/cartel-sh/box/notifications"
	"github.com/cartel-sh/box/wallet"
)

var handleOpHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "box_handle_op_duration_ms",
	Help:    "A histogram of api operation handling durations",
	Buckets: prometheus.ExponentialBuckets(1, 2, 15),
}, []string{"method", "path"})

type Server struct {
	lens      *lens.HTTPClient
	storage   *lens.StorageClient
	hydrator  *hydration.Hydrator
	store     *Store
	wallets   *wallet.Registry
	publisher *actions.Publisher
	upgrader  websocket.Upgrader

	chainID       int64
	notifInterval time.Duration
	listenAddr    string

	bgCtx context.Context

	aggLk       sync.Mutex
	aggregators map[string]*notifications.Aggregator
	tokens      map[string]string

	collLk     sync.Mutex
	collectors map[string]*actions.Collector
}

func main() {
	app := cli.App{
		Name: "box",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Value: ":5555",
		},
		&cli.StringFlag{
			Name:    "db-url",
			Value:   "box.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "lens-api",
			Value:   "https://api.lens.xyz",
			EnvVars: []string{"LENS_API_URL"},
		},
		&cli.StringFlag{
			Name:    "storage-api",
			Value:   "https://storage.lens.xyz",
			EnvVars: []string{"STORAGE_API_URL"},
		},
		&cli.Int64Flag{
			Name:  "chain-id",
			Value: 232,
		},
		&cli.DurationFlag{
			Name:  "notif-interval",
			Value: time.Minute,
		},
		&cli.StringFlag{
			Name:    "jaeger",
			EnvVars: []string{"JAEGER_URL"},
		},
	}
	app.Action = runServer

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cctx *cli.Context) error {
	ctx := context.Background()

	if jurl := cctx.String("jaeger"); jurl != "" {
		shutdown, err := setupTracing(jurl)
		if err != nil {
			return err
		}
		defer shutdown(ctx)
	}

	db, err := openDatabase(cctx.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	client := lens.NewClient(cctx.String("lens-api"))

	s := &Server{
		lens:          client,
		storage:       lens.NewStorageClient(cctx.String("storage-api")),
		hydrator:      hydration.NewHydrator(client),
		store:         store,
		wallets:       wallet.NewRegistry(),
		chainID:       cctx.Int64("chain-id"),
		notifInterval: cctx.Duration("notif-interval"),
		listenAddr:    cctx.String("listen"),
		bgCtx:         ctx,
		aggregators:   make(map[string]*notifications.Aggregator),
		tokens:        make(map[string]string),
		collectors:    make(map[string]*actions.Collector),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.publisher = actions.NewPublisher(s.storage)

	slog.Info("starting api server", "listen", s.listenAddr)
	return s.runApiServer()
}

func openDatabase(url string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold: 500 * time.Millisecond,
			LogLevel:      logger.Warn,
		}),
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return gorm.Open(postgres.Open(url), gcfg)
	}

	return gorm.Open(sqlite.Open(url), gcfg)
}

func setupTracing(url string) (func(context.Context) error, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
	if err != nil {
		return nil, err
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("box"),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
