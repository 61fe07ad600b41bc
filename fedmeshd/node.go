// Package fedmeshd wires and runs a full federation node: both
// transport channels, the federation plane, the learning coordinator
// and their HTTP surfaces.
package fedmeshd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/fedmesh/fedmesh/coordinator"
	coordapi "github.com/fedmesh/fedmesh/coordinator/api"
	coordmiddleware "github.com/fedmesh/fedmesh/coordinator/middleware"
	"github.com/fedmesh/fedmesh/federation"
	fedapi "github.com/fedmesh/fedmesh/federation/api"
	"github.com/fedmesh/fedmesh/federation/middleware"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/participant"
	"github.com/fedmesh/fedmesh/pkg/auth"
	"github.com/fedmesh/fedmesh/pkg/balancer"
	"github.com/fedmesh/fedmesh/pkg/crypto"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/fedmesh/fedmesh/pkg/health"
	"github.com/fedmesh/fedmesh/pkg/mqtt"
	"github.com/fedmesh/fedmesh/pkg/pool"
	"github.com/fedmesh/fedmesh/pkg/privacy"
	"github.com/fedmesh/fedmesh/pkg/sdk"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const svcName = "fedmesh"

type Config struct {
	LogLevel     string
	InstanceID   string
	NodeID       string
	FederationID string

	MQTTAddress  string
	MQTTQoS      uint8
	MQTTTimeout  time.Duration
	MQTTUsername string
	MQTTPassword string

	AuthSecret      string
	AuthTokenTTL    time.Duration
	APIKeys         []string
	RPCToken        string
	TLSVerification bool

	HeartbeatInterval time.Duration
	HealthInterval    time.Duration
	MaxConnections    int

	Epsilon   float64
	Delta     float64
	MaxBudget float64
	KeyTTL    time.Duration

	StateDir string

	FederationServer  server.Config
	CoordinatorServer server.Config
	OTELURL           url.URL
	TraceRatio        float64
}

func StartNode(ctx context.Context, cancel context.CancelFunc, cfg Config) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				slog.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	pubsub, err := mqtt.NewPubSub(mqtt.Config{
		Address:    cfg.MQTTAddress,
		NodeID:     cfg.NodeID,
		Username:   cfg.MQTTUsername,
		Password:   cfg.MQTTPassword,
		Federation: cfg.FederationID,
		QoS:        cfg.MQTTQoS,
		Timeout:    cfg.MQTTTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
	}

	registry := balancer.NewRegistry()
	lb := balancer.NewLeastConnections(registry)
	connPool := pool.New(pool.Config{
		MaxConnections: cfg.MaxConnections,
	}, pool.NewFactory(pubsub, cfg.RPCToken, cfg.TLSVerification), logger)

	probe := func(ctx context.Context, n node.Node) error {
		return sdk.NewSDK(sdk.Config{
			BaseURL:         "http://" + n.Endpoint(),
			Token:           cfg.RPCToken,
			TLSVerification: cfg.TLSVerification,
		}).HealthCheck()
	}
	checker := health.NewChecker(health.Config{
		Interval: cfg.HealthInterval,
	}, probe, logger)

	fedEvents := federation.NewEmitter()
	fedSvc := federation.NewService(federation.Config{
		Federation:        cfg.FederationID,
		NodeID:            cfg.NodeID,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, storage.NewInMemoryStorage(), registry, lb, connPool, checker, pubsub, fedEvents, logger)

	budgets := privacy.NewBudgetManager(privacy.BudgetConfig{
		Epsilon:   cfg.Epsilon,
		Delta:     cfg.Delta,
		MaxBudget: cfg.MaxBudget,
	}, logger)
	participants := participant.NewManager(storage.NewInMemoryStorage(), budgets, logger)

	flStore, err := fl.NewPersistentStorage(
		filepath.Join(cfg.StateDir, "rounds"),
		filepath.Join(cfg.StateDir, "models"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize model storage: %s", err.Error())
	}

	keys := crypto.NewKeyManager(storage.NewInMemoryStorage(), cfg.KeyTTL)

	aggregators := map[string]fl.Aggregator{
		"fedavg":  fl.NewFedAvgAggregator(),
		"fedprox": fl.NewFedProxAggregator(0.01),
		"secure":  fl.NewSecureAggregator(crypto.NewSimulatedHomomorphic(), nil),
	}
	coordEvents := coordinator.NewEmitter()
	coordSvc := coordinator.NewService(participants, budgets, flStore, aggregators, coordEvents, logger)

	var coord coordinator.Service = coordSvc
	coord = coordmiddleware.Logging(logger, coord)
	coord = coordmiddleware.Tracing(tracer, coord)
	coordCounter, coordLatency := prometheus.MakeMetrics("coordinator", "api")
	coord = coordmiddleware.Metrics(coordCounter, coordLatency, coord)

	fedSvc.HandleLearning(coordinator.Handler(coord))
	fedSvc.HandleMessage(crypto.Handler(keys))

	var fed federation.Service = fedSvc
	fed = middleware.Logging(logger, fed)
	fed = middleware.Tracing(tracer, fed)
	fedCounter, fedLatency := prometheus.MakeMetrics("federation", "api")
	fed = middleware.Metrics(fedCounter, fedLatency, fed)

	var authm *auth.Manager
	if cfg.AuthSecret != "" || len(cfg.APIKeys) > 0 {
		authm = auth.NewManager()
		if cfg.AuthSecret != "" {
			authm.Register(auth.SchemeToken, auth.NewTokenAuthenticator([]byte(cfg.AuthSecret), cfg.AuthTokenTTL))
		}
		if len(cfg.APIKeys) > 0 {
			authm.Register(auth.SchemeAPIKey, auth.NewAPIKeyAuthenticator(cfg.APIKeys...))
		}
	}

	if err := fed.Start(ctx); err != nil {
		return fmt.Errorf("failed to start federation plane: %s", err.Error())
	}
	defer func() {
		if err := fed.Stop(context.Background()); err != nil {
			logger.Error("failed to stop federation plane", slog.Any("error", err))
		}
	}()

	fs := httpserver.NewServer(ctx, cancel, "federation", cfg.FederationServer, fedapi.MakeHandler(fed, fedSvc, fedEvents, authm, logger, cfg.InstanceID), logger)
	cs := httpserver.NewServer(ctx, cancel, "coordinator", cfg.CoordinatorServer, coordapi.MakeHandler(coord, participants, authm, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return fs.Start()
	})
	g.Go(func() error {
		return cs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, fs, cs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}

	return nil
}
