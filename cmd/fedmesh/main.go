package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/absmach/supermq/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/fedmesh/fedmesh/fedmeshd"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defFederationPort  = "7070"
	defCoordinatorPort = "7071"
	envPrefixFed       = "FEDMESH_FEDERATION_HTTP_"
	envPrefixCoord     = "FEDMESH_COORDINATOR_HTTP_"
	pathEnv            = ".env"
)

type envConfig struct {
	LogLevel          string        `env:"FEDMESH_LOG_LEVEL"          envDefault:"info"`
	InstanceID        string        `env:"FEDMESH_INSTANCE_ID"`
	NodeID            string        `env:"FEDMESH_NODE_ID"`
	FederationID      string        `env:"FEDMESH_FEDERATION_ID"      envDefault:"default"`
	MQTTAddress       string        `env:"FEDMESH_MQTT_ADDRESS"       envDefault:"tcp://localhost:1883"`
	MQTTQoS           uint8         `env:"FEDMESH_MQTT_QOS"           envDefault:"2"`
	MQTTTimeout       time.Duration `env:"FEDMESH_MQTT_TIMEOUT"       envDefault:"30s"`
	MQTTUsername      string        `env:"FEDMESH_MQTT_USERNAME"`
	MQTTPassword      string        `env:"FEDMESH_MQTT_PASSWORD"`
	AuthSecret        string        `env:"FEDMESH_AUTH_SECRET"`
	AuthTokenTTL      time.Duration `env:"FEDMESH_AUTH_TOKEN_TTL"     envDefault:"24h"`
	APIKeys           []string      `env:"FEDMESH_API_KEYS"`
	RPCToken          string        `env:"FEDMESH_RPC_TOKEN"`
	TLSVerification   bool          `env:"FEDMESH_TLS_VERIFICATION"   envDefault:"false"`
	HeartbeatInterval time.Duration `env:"FEDMESH_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HealthInterval    time.Duration `env:"FEDMESH_HEALTH_INTERVAL"    envDefault:"30s"`
	MaxConnections    int           `env:"FEDMESH_MAX_CONNECTIONS"    envDefault:"100"`
	Epsilon           float64       `env:"FEDMESH_DP_EPSILON"         envDefault:"1.0"`
	Delta             float64       `env:"FEDMESH_DP_DELTA"           envDefault:"0.00001"`
	MaxBudget         float64       `env:"FEDMESH_DP_MAX_BUDGET"      envDefault:"10.0"`
	KeyTTL            time.Duration `env:"FEDMESH_KEY_TTL"            envDefault:"0"`
	StateDir          string        `env:"FEDMESH_STATE_DIR"          envDefault:"./fedmesh-state"`
	OTELURL           url.URL       `env:"FEDMESH_OTEL_URL"`
	TraceRatio        float64       `env:"FEDMESH_TRACE_RATIO"        envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.NodeID == "" {
		cfg.NodeID = cfg.InstanceID
	}

	fedServerConfig := server.Config{Port: defFederationPort}
	if err := env.ParseWithOptions(&fedServerConfig, env.Options{Prefix: envPrefixFed}); err != nil {
		log.Fatalf("failed to load federation HTTP server configuration : %s", err.Error())
	}
	coordServerConfig := server.Config{Port: defCoordinatorPort}
	if err := env.ParseWithOptions(&coordServerConfig, env.Options{Prefix: envPrefixCoord}); err != nil {
		log.Fatalf("failed to load coordinator HTTP server configuration : %s", err.Error())
	}

	nodeCfg := fedmeshd.Config{
		LogLevel:          cfg.LogLevel,
		InstanceID:        cfg.InstanceID,
		NodeID:            cfg.NodeID,
		FederationID:      cfg.FederationID,
		MQTTAddress:       cfg.MQTTAddress,
		MQTTQoS:           cfg.MQTTQoS,
		MQTTTimeout:       cfg.MQTTTimeout,
		MQTTUsername:      cfg.MQTTUsername,
		MQTTPassword:      cfg.MQTTPassword,
		AuthSecret:        cfg.AuthSecret,
		AuthTokenTTL:      cfg.AuthTokenTTL,
		APIKeys:           cfg.APIKeys,
		RPCToken:          cfg.RPCToken,
		TLSVerification:   cfg.TLSVerification,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HealthInterval:    cfg.HealthInterval,
		MaxConnections:    cfg.MaxConnections,
		Epsilon:           cfg.Epsilon,
		Delta:             cfg.Delta,
		MaxBudget:         cfg.MaxBudget,
		KeyTTL:            cfg.KeyTTL,
		StateDir:          cfg.StateDir,
		FederationServer:  fedServerConfig,
		CoordinatorServer: coordServerConfig,
		OTELURL:           cfg.OTELURL,
		TraceRatio:        cfg.TraceRatio,
	}

	if err := fedmeshd.StartNode(ctx, cancel, nodeCfg); err != nil {
		log.Fatalf("node exited with error: %s", err.Error())
	}
}
