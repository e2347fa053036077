package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// OpenTelemetry
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Stores
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	// Infrastructure optionnelle
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	// Interne
	"github.com/askarthikey/cleverSM/config"
	"github.com/askarthikey/cleverSM/internal/adapters/primary/events"
	"github.com/askarthikey/cleverSM/internal/adapters/primary/rest"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/cache"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/eventbroker"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/graph"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/metrics"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/memory"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/mongodb"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/repository/postgres"
	"github.com/askarthikey/cleverSM/internal/adapters/secondary/security"
	"github.com/askarthikey/cleverSM/internal/core/ports"
	"github.com/askarthikey/cleverSM/internal/core/services"
)

// stores : les trois ports de persistance, quel que soit le driver.
type stores struct {
	users         ports.UserRepository
	requests      ports.FollowRequestRepository
	notifications ports.NotificationRepository
	close         func()
}

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	initLogger(cfg)
	slog.Info("🚀 Starting Social Service", "env", cfg.Env, "http_port", cfg.HTTPPort, "store", cfg.StoreDriver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (désactivé sans endpoint OTLP)
	if cfg.OtelEndpoint != "" {
		tp, err := initTracer(ctx, cfg)
		if err != nil {
			slog.Error("Failed to init tracer", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					slog.Error("Error shutting down tracer", "error", err)
				}
			}()
		}
	}

	// 4. Store principal
	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()
	slog.Info("✅ Store ready", "driver", cfg.StoreDriver)

	prom := metrics.NewPrometheus()

	// 5. Infrastructure optionnelle. Les ports restent nil (interface) si désactivés.
	var counter ports.UnreadCounter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			slog.Error("Failed to instrument Redis", "error", err)
			os.Exit(1)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		counter = cache.NewRedisUnreadCounter(rdb, cache.DefaultUnreadTTL)
		slog.Info("✅ Connected to Redis")
	}

	var projection ports.GraphProjection
	if cfg.Neo4jURI != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
		if err != nil {
			slog.Error("Failed to create neo4j driver", "error", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())

		vctx, vcancel := context.WithTimeout(ctx, 5*time.Second)
		err = driver.VerifyConnectivity(vctx)
		vcancel()
		if err != nil {
			slog.Error("Neo4j unreachable", "error", err)
			os.Exit(1)
		}
		p := graph.NewNeo4jProjection(driver, "")
		if err := p.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to ensure neo4j schema", "error", err)
			os.Exit(1)
		}
		projection = p
		slog.Info("✅ Connected to Neo4j")
	}

	var (
		publisher ports.EventPublisher
		js        jetstream.JetStream
	)
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl, nats.Name(cfg.ServiceName))
		if err != nil {
			slog.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()

		js, err = jetstream.New(nc)
		if err != nil {
			slog.Error("Failed to init JetStream", "error", err)
			os.Exit(1)
		}
		broker, err := eventbroker.NewNatsBroker(ctx, js)
		if err != nil {
			slog.Error("Failed to init event broker", "error", err)
			os.Exit(1)
		}
		publisher = broker
		slog.Info("✅ NATS JetStream connected")
	}

	// 6. Sécurité
	jwtProvider, err := security.NewJWTProvider(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.ServiceName)
	if err != nil {
		slog.Error("Failed to init JWT provider", "error", err)
		os.Exit(1)
	}
	hasher := security.NewArgon2Hasher(nil) // Params par défaut

	// 7. Wiring (Injection de dépendances) - Adapters -> Services
	identityService := services.NewIdentityService(st.users, st.requests, hasher, jwtProvider, publisher)
	notificationService := services.NewNotificationService(st.notifications, counter, prom)
	socialService := services.NewSocialGraphService(services.SocialGraphDeps{
		Users:         st.users,
		Requests:      st.requests,
		Notifications: st.notifications,
		Events:        publisher,
		Graph:         projection,
		Counter:       counter,
		Metrics:       prom,
	}, cfg.NotifyOnReject)

	// Consommateur des interactions (like/comment/share)
	var consumer *events.EventHandler
	if js != nil {
		consumer = events.NewEventHandler(notificationService)
		if err := consumer.Start(ctx, js); err != nil {
			slog.Error("Failed to start interaction consumer", "error", err)
			os.Exit(1)
		}
	}

	// 8. Serveur HTTP
	mux := rest.NewHandler(identityService, socialService, notificationService).Routes()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", prom.Handler())

	// Chaîne de middlewares : OTEL (racine) -> CORS -> métriques -> mux
	var h http.Handler = prom.InstrumentHandler(mux)
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "baggage", "traceparent"},
		AllowCredentials: true,
	}).Handler(h)
	h = otelhttp.NewHandler(h, cfg.ServiceName, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("📡 HTTP server listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Serveur gRPC (health + reflection pour K8s et grpcurl)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
		slog.Info("🔍 gRPC Reflection enabled")
	}

	go func() {
		slog.Info("🚀 gRPC health server listening", "address", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("Failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sig := <-quit
	slog.Info("⚠️  Signal received, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	if consumer != nil {
		consumer.Stop()
	}
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("✅ Servers stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("⏳ Timeout reached, forcing server stop")
		grpcServer.Stop()
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().
			ApplyURI(cfg.MongoURI).
			SetTimeout(cfg.DBTimeout).
			SetMaxPoolSize(uint64(cfg.DBMaxConns)))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo ping: %w", err)
		}

		s := mongodb.NewStore(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return &stores{
			users:         s.Users(),
			requests:      s.FollowRequests(),
			notifications: s.Notifications(),
			close:         func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.StorePostgres:
		dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
		if err != nil {
			return nil, fmt.Errorf("parse db config: %w", err)
		}
		dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()
		dbConfig.MaxConns = int32(cfg.DBMaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}

		s := postgres.NewStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db schema: %w", err)
		}
		return &stores{
			users:         s.Users(),
			requests:      s.FollowRequests(),
			notifications: s.Notifications(),
			close:         pool.Close,
		}, nil

	default:
		slog.Warn("⚠️ In-memory store: data is lost on restart")
		s := memory.NewStore()
		return &stores{
			users:         s.Users(),
			requests:      s.FollowRequests(),
			notifications: s.Notifications(),
			close:         func() {},
		}, nil
	}
}

func initLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(), // En prod, gérez le TLS
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
