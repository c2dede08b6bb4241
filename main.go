package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/registryx/registryx/pkg/accesscontrol"
	"github.com/registryx/registryx/pkg/config"
	"github.com/registryx/registryx/pkg/database"
	"github.com/registryx/registryx/pkg/eventbus"
	"github.com/registryx/registryx/pkg/logging"
	"github.com/registryx/registryx/pkg/metadataindex"
	"github.com/registryx/registryx/pkg/registry"
	"github.com/registryx/registryx/pkg/storage"
	"github.com/registryx/registryx/pkg/upload"
)

func main() {
	cfg := config.Load()
	logging.Log.Infof("Starting RegistryX on %s...", cfg.ServerPort)

	store, err := storage.NewS3Store(cfg)
	if err != nil {
		logging.Log.Fatalf("failed to initialize storage driver: %v", err)
	}

	var dbConn *sql.DB
	for i := 0; i < 10; i++ {
		dbConn, err = database.Connect(cfg)
		if err == nil {
			break
		}
		logging.Log.Warnf("failed to connect to database (attempt %d/10): %v. retrying in 2s...", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logging.Log.Fatalf("failed to connect to database after retries: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logging.Log.Warnf("redis unreachable, falling back to single-process locking/events: %v", err)
		redisClient = nil
	}

	mdi := metadataindex.NewService(dbConn)
	uploadMgr := upload.NewManager(mdi, store, redisClient, cfg)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go uploadMgr.RunExpirySweep(sweepCtx)

	jwtAuth := &accesscontrol.JWTAuthenticator{Secret: cfg.JWTSecret, Redis: redisClient}
	serviceAccounts := accesscontrol.NewServiceAccounts(dbConn)
	policyEngine := accesscontrol.NewPolicyEngine()
	checker := &accesscontrol.DefaultChecker{
		JWT:      jwtAuth,
		Accounts: serviceAccounts,
		Policy:   policyEngine,
		Realm:    "https://" + cfg.ServerPort + "/auth/token",
		Service:  "registryx",
	}

	bus := eventbus.NewBus(context.Background(), cfg.WebhookURL, redisClient, 256)

	handler := registry.NewHandler(cfg, store, mdi, uploadMgr, checker, bus)
	router := registry.NewRouter(handler)

	withMiddleware := checker.Middleware(loggingMiddleware(corsMiddleware(router)))

	logging.Log.Fatal(http.ListenAndServe(cfg.ServerPort, withMiddleware))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Log.Debugf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Docker-Upload-UUID, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
