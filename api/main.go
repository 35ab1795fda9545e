package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sentinel-guard/api/internal/auth"
	"sentinel-guard/api/internal/handlers"
	"sentinel-guard/api/internal/hoststat"
	"sentinel-guard/api/internal/report"
	"sentinel-guard/api/internal/storage"
	"sentinel-guard/api/internal/stream"
	"sentinel-guard/internal/alert"
	"sentinel-guard/internal/client"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile = flag.String("config", utils.DefaultConfigPath, "Configuration file path (YAML)")
		port       = flag.String("port", "", "API server port (overrides server.listen_addr)")
		noMock     = flag.Bool("no-mock", false, "Disable the mock IDS alert generator")
		noSeed     = flag.Bool("no-seed", false, "Start with an empty store")
	)
	flag.Parse()

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		config.Server.ListenAddr = ":" + *port
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format, config.Logging.FilePath)

	store := storage.NewStorage(logger)
	if !*noSeed {
		store.Seed(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	queue := newCommandQueue(config, logger)
	if rq, ok := queue.(*storage.RedisQueue); ok {
		defer rq.Close()
	}

	authn := auth.NewAuthenticator(config.Server.JWTSecret, config.TokenTTL(), config.Server.Users)
	hub := stream.NewHub(func(token string) bool {
		_, err := authn.Validate(token)
		return err == nil
	}, logger)

	registry := alert.CreateCustomRegistry()
	metrics := handlers.NewMetrics(registry)
	promauto.With(registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "sentinel_server_stream_clients",
		Help: "Connected IDS stream clients",
	}, func() float64 { return float64(hub.ClientCount()) })

	sink := stream.SinkFunc(func(a model.ThreatAlert) {
		metrics.ObserveAlert(a)
		hub.Broadcast(a)
	})
	generator := stream.NewGenerator(store, sink, config.MockInterval(), time.Now().UnixNano(), logger)

	deps := handlers.Deps{
		Store:   store,
		Queue:   queue,
		Auth:    authn,
		Hub:     hub,
		Reports: report.NewService(report.NewAIClient(config.Server.AI.URL, time.Duration(config.Server.AI.TimeoutSeconds)*time.Second, logger), store, logger),
		Sampler: hoststat.NewSampler("/", logger),
		Metrics: metrics,
		Config:  config,
		Logger:  logger,
	}
	if !*noMock {
		deps.Generator = generator
	}
	if config.Prometheus.URL != "" {
		promClient, err := client.NewPrometheusClient(config.Prometheus.URL)
		if err != nil {
			logger.Warnf("Failed to create Prometheus client: %v", err)
			logger.Warn("Trend queries will use stored alerts")
		} else {
			logger.Infof("Prometheus client connected to %s", config.Prometheus.URL)
			deps.Prometheus = promClient
		}
	}
	h := handlers.NewHandlers(deps)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(metrics.Middleware)
	h.Register(api)

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")
	// Preflight requests reach corsMiddleware through this catch-all.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	servers := []*http.Server{newServer(config.Server.ListenAddr, router)}
	if config.Server.StreamAddr == "" {
		router.Handle(config.Server.StreamPath, hub)
		logger.Infof("IDS stream mounted at %s%s", config.Server.ListenAddr, config.Server.StreamPath)
	} else {
		streamRouter := mux.NewRouter()
		streamRouter.Handle(config.Server.StreamPath, hub)
		servers = append(servers, newServer(config.Server.StreamAddr, streamRouter))
		logger.Infof("IDS stream listening on %s%s", config.Server.StreamAddr, config.Server.StreamPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	if !*noMock {
		go generator.Run(ctx)
	}

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			logger.Infof("Server starting on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Server on %s failed: %v", srv.Addr, err)
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	logger.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}
	wg.Wait()
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

// newCommandQueue falls back to memory when Redis is unreachable.
func newCommandQueue(config *utils.Config, logger *logrus.Logger) storage.CommandQueue {
	if config.Server.CommandQueue.Backend != "redis" {
		return storage.NewMemoryQueue()
	}
	queue, err := storage.NewRedisQueue(config.Server.CommandQueue.RedisAddr, config.Server.CommandQueue.RedisDB, logger)
	if err != nil {
		logger.Warnf("Failed to create Redis command queue: %v", err)
		logger.Warn("Agent commands will be kept in memory")
		return storage.NewMemoryQueue()
	}
	return queue
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigins := []string{
			"http://localhost:5173",
			"http://localhost:3000",
			"http://127.0.0.1:5173",
			"http://127.0.0.1:3000",
		}

		allowOrigin := "*"
		if origin != "" {
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					allowOrigin = origin
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if allowOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
