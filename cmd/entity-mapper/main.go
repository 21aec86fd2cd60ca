package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/diwise/entity-mapper/internal/pkg/application/mapping"
	"github.com/diwise/entity-mapper/internal/pkg/infrastructure/router"
	"github.com/diwise/entity-mapper/internal/pkg/presentation/api"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/store/memory"
	"github.com/diwise/entity-mapper/pkg/store/postgres"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "entity-mapper"

func defaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",

		configPath: "/opt/diwise/config/entity-mapper.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",

		logFormat: "json",
	}
}

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx := context.Background()
	flags := parseExternalConfig(ctx, defaultFlags())

	ctx, log, cleanup := o11y.Init(ctx, serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		fatal(ctx, "failed to open configuration file", err)
	}
	defer cfgFile.Close()

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		fatal(ctx, "failed to open opa policy file", err)
	}
	defer policies.Close()

	storage, closeStore, err := newStore(ctx)
	if err != nil {
		fatal(ctx, "failed to create entity store", err)
	}
	defer closeStore()

	app, handler, err := initialize(ctx, cfgFile, policies, storage)
	if err != nil {
		fatal(ctx, "initialization failed", err)
	}

	err = app.Start()
	if err != nil {
		fatal(ctx, "failed to start application", err)
	}
	defer app.Stop()

	addr := flags[listenAddress] + ":" + flags[servicePort]
	log.Info("starting to listen for connections", "addr", addr)

	err = http.ListenAndServe(addr, handler)
	if err != nil {
		fatal(ctx, "failed to listen for connections", err)
	}
}

func initialize(ctx context.Context, cfgFile, policies io.Reader, storage store.Store) (mapping.EntityMapper, http.Handler, error) {
	cfg, err := mapping.LoadConfiguration(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	app, err := mapping.New(ctx, *cfg, storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mapping application: %w", err)
	}

	r := router.New(serviceName)

	err = api.RegisterHandlers(ctx, r, policies, app)
	if err != nil {
		return nil, nil, err
	}

	return app, r, nil
}

// newStore connects to postgres when a database host is configured and falls back
// to an in-memory store otherwise
func newStore(ctx context.Context) (store.Store, func(), error) {
	log := logging.GetFromContext(ctx)

	pgcfg := postgres.LoadConfiguration(ctx)
	if !pgcfg.Enabled() {
		log.Warn("no database configured, mapped entities will only be kept in memory")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, pgcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := postgres.New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	return s, pool.Close, nil
}

func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {

	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = envOrDef(ctx, "ENTITY_MAPPER_CONFIG", flags[configPath])
	flags[opaPath] = envOrDef(ctx, "OPA_POLICIES", flags[opaPath])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "-config <file>", apply(configPath))
	flag.Func("policies", "-policies <file>", apply(opaPath))
	flag.Func("logformat", "-logformat <json|text>", apply(logFormat))
	flag.Parse()

	return flags
}

func fatal(ctx context.Context, msg string, err error) {
	logger := logging.GetFromContext(ctx)
	logger.Error(msg, "err", err.Error())
	os.Exit(1)
}
