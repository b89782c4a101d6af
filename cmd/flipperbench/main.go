// flipperbench is a developer tool for exercising real flipper adapters the
// way unit tests cannot: seeding a deterministic rollout state, measuring
// evaluation throughput, and round-trip health-checking a network-backed
// adapter. Adapted from the teacher's cmd/terracost, which wires the same
// urfave/cli/v2 + zerolog combination for its own subcommands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/larouxn/flipper/internal/platform"
	"github.com/larouxn/flipper/pkg/adapter/cascade"
	"github.com/larouxn/flipper/pkg/adapter/dynamodbadapter"
	"github.com/larouxn/flipper/pkg/adapter/httpadapter"
	"github.com/larouxn/flipper/pkg/adapter/memoryadapter"
	"github.com/larouxn/flipper/pkg/adapter/sqladapter"
	"github.com/larouxn/flipper/pkg/flipper"
	"github.com/larouxn/flipper/pkg/instrumenter/clickhouse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// zerolog above is this CLI's human-facing console output; logger is
	// the JSON slog.Logger every adapter/instrumenter is constructed with,
	// matching the split the teacher keeps between its services and its
	// own cmd/cli.
	logger := platform.InitLogger()

	app := &cli.App{
		Name:  "flipperbench",
		Usage: "development tool for seeding and exercising a flipper adapter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "adapter",
				Value:   platform.GetEnv("FLIPPER_ADAPTER", "memory"),
				Usage:   "adapter kind: memory, postgres, dynamodb, http",
				EnvVars: []string{"FLIPPER_ADAPTER"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Value:   platform.GetEnv("FLIPPER_POSTGRES_DSN", ""),
				Usage:   "Postgres DSN (adapter=postgres)",
				EnvVars: []string{"FLIPPER_POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "dynamodb-table",
				Value:   platform.GetEnv("FLIPPER_DYNAMODB_TABLE", ""),
				Usage:   "DynamoDB table name (adapter=dynamodb)",
				EnvVars: []string{"FLIPPER_DYNAMODB_TABLE"},
			},
			&cli.StringFlag{
				Name:    "http-endpoint",
				Value:   platform.GetEnv("FLIPPER_HTTP_ENDPOINT", ""),
				Usage:   "remote flipper HTTP endpoint (adapter=http)",
				EnvVars: []string{"FLIPPER_HTTP_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:  "aws-region",
				Value: platform.GetEnv("FLIPPER_AWS_REGION", ""),
				Usage: "AWS region override (adapter=dynamodb)",
			},
			&cli.StringFlag{
				Name:  "clickhouse-addr",
				Value: platform.GetEnv("FLIPPER_CLICKHOUSE_DSN", ""),
				Usage: "host:port of a ClickHouse instrumenter sink to additionally record every event to (optional)",
			},
			&cli.BoolFlag{
				Name:  "cache",
				Usage: "wrap the target adapter in an in-process cascade.Adapter local cache",
			},
			&cli.IntFlag{
				Name:  "cache-ttl-seconds",
				Value: platform.GetEnvInt("FLIPPER_CACHE_TTL_SECONDS", 30),
				Usage: "wholesale local-cache invalidation interval for sources with no push-invalidation channel (dynamodb, http)",
			},
		},
		Commands: []*cli.Command{
			seedCommand(logger),
			benchCommand(logger),
			roundtripCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("flipperbench failed")
		os.Exit(1)
	}
}

// buildAdapter constructs the adapter named by the global --adapter flag.
// With --cache it is wrapped in a cascade.Adapter local cache: a Postgres
// source pushes invalidations via ListenInvalidations (LISTEN/NOTIFY), while
// dynamodb/http sources, which have no push channel, fall back to wholesale
// TTL invalidation on --cache-ttl-seconds.
func buildAdapter(ctx context.Context, c *cli.Context, logger *slog.Logger) (flipper.Adapter, error) {
	var source flipper.Adapter

	switch c.String("adapter") {
	case "memory":
		return memoryadapter.New(), nil
	case "postgres":
		dsn := c.String("postgres-dsn")
		if dsn == "" {
			return nil, fmt.Errorf("--postgres-dsn is required for adapter=postgres")
		}
		pg, err := sqladapter.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if !c.Bool("cache") {
			return pg, nil
		}
		cached := cascade.New(memoryadapter.New(), pg, logger)
		if err := pg.ListenInvalidations(ctx, logger, cached.Invalidate); err != nil {
			return nil, fmt.Errorf("listen for invalidations: %w", err)
		}
		return cached, nil
	case "dynamodb":
		table := c.String("dynamodb-table")
		if table == "" {
			return nil, fmt.Errorf("--dynamodb-table is required for adapter=dynamodb")
		}
		ddb, err := dynamodbadapter.NewFromEnv(ctx, table, c.String("aws-region"))
		if err != nil {
			return nil, err
		}
		source = ddb
	case "http":
		endpoint := c.String("http-endpoint")
		if endpoint == "" {
			return nil, fmt.Errorf("--http-endpoint is required for adapter=http")
		}
		source = httpadapter.New(endpoint)
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", c.String("adapter"))
	}

	if !c.Bool("cache") {
		return source, nil
	}
	cached := cascade.New(memoryadapter.New(), source, logger)
	startTTLInvalidation(ctx, source, cached, time.Duration(c.Int("cache-ttl-seconds"))*time.Second, logger)
	return cached, nil
}

// startTTLInvalidation periodically invalidates every cached feature for
// source adapters with no push-invalidation channel of their own.
func startTTLInvalidation(ctx context.Context, source flipper.Adapter, cached *cascade.Adapter, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				names, err := source.Features(ctx)
				if err != nil {
					logger.Warn("cache ttl: list features failed", "error", err)
					continue
				}
				for name := range names {
					if err := cached.Invalidate(ctx, name); err != nil {
						logger.Warn("cache ttl: invalidate failed", "feature", name, "error", err)
					}
				}
			}
		}
	}()
}

// buildInstrumenter constructs the optional ClickHouse instrumenter named by
// --clickhouse-addr. It returns a nil Instrumenter and a no-op closer when
// the flag is unset.
func buildInstrumenter(ctx context.Context, c *cli.Context, logger *slog.Logger) (flipper.Instrumenter, func() error, error) {
	addr := c.String("clickhouse-addr")
	if addr == "" {
		return nil, func() error { return nil }, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("--clickhouse-addr must be host:port: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nil, fmt.Errorf("--clickhouse-addr port: %w", err)
	}
	cfg := clickhouse.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	inst, err := clickhouse.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return inst, inst.Close, nil
}

func seedCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load a YAML fixture of features/groups into the target adapter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "path to the fixture YAML file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			adapter, err := buildAdapter(ctx, c, logger)
			if err != nil {
				return err
			}
			f, err := loadFixture(c.String("file"))
			if err != nil {
				return err
			}
			app := flipper.New(adapter)
			n, err := applyFixture(ctx, app, f)
			if err != nil {
				return err
			}
			log.Info().Int("features", n).Str("file", c.String("file")).Msg("fixture applied")
			return nil
		},
	}
}

func benchCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "measure Enabled() throughput and latency against the target adapter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "feature",
				Aliases:  []string{"n"},
				Usage:    "feature name to evaluate",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "iterations",
				Value: 10_000,
				Usage: "number of Enabled() calls to run",
			},
			&cli.IntFlag{
				Name:  "actors",
				Value: 100,
				Usage: "number of distinct synthetic actor ids to cycle through",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			adapter, err := buildAdapter(ctx, c, logger)
			if err != nil {
				return err
			}
			inst, closeInst, err := buildInstrumenter(ctx, c, logger)
			if err != nil {
				return err
			}
			defer closeInst()

			var opts []flipper.Option
			if inst != nil {
				opts = append(opts, flipper.WithInstrumenter(inst))
			}
			app := flipper.New(adapter, opts...)
			feature := app.Feature(c.String("feature"))

			iterations := c.Int("iterations")
			actorCount := c.Int("actors")
			actors := make([]flipper.ActorRef, actorCount)
			for i := range actors {
				actors[i] = flipper.NewActor(fmt.Sprintf("bench-actor-%d", i))
			}

			var enabledCount int
			start := time.Now()
			for i := 0; i < iterations; i++ {
				actor := actors[rand.Intn(actorCount)]
				enabled, err := feature.Enabled(ctx, actor)
				if err != nil {
					return fmt.Errorf("enabled: %w", err)
				}
				if enabled {
					enabledCount++
				}
			}
			elapsed := time.Since(start)

			log.Info().
				Int("iterations", iterations).
				Int("enabled", enabledCount).
				Dur("elapsed", elapsed).
				Float64("avg_latency_us", float64(elapsed.Microseconds())/float64(iterations)).
				Msg("bench complete")
			return nil
		},
	}
}

// pinger is implemented by adapters that wrap a network resource
// (SPEC_FULL.md Supplemental Feature 2).
type pinger interface {
	Ping(ctx context.Context) error
}

func roundtripCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "roundtrip",
		Usage: "health-check the target adapter's underlying connection",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			adapter, err := buildAdapter(ctx, c, logger)
			if err != nil {
				return err
			}
			p, ok := adapter.(pinger)
			if !ok {
				log.Info().Str("adapter", c.String("adapter")).Msg("adapter has no network resource to ping")
				return nil
			}
			start := time.Now()
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			log.Info().Dur("latency", time.Since(start)).Msg("roundtrip OK")
			return nil
		},
	}
}
