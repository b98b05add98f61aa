// Package main provides the local sync engine daemon. UI clients talk to it
// over REST/WebSocket on localhost; it owns the local store, the sync queue,
// and the connection to the remote API.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/kimhsiao/fitsync/internal/api"
	"github.com/kimhsiao/fitsync/internal/config"
	"github.com/kimhsiao/fitsync/internal/logging"
	"github.com/kimhsiao/fitsync/internal/store"
	syncpkg "github.com/kimhsiao/fitsync/internal/sync"
	"github.com/kimhsiao/fitsync/internal/sync/draft"
	"github.com/kimhsiao/fitsync/internal/sync/scheduler"
)

// connectivityPollInterval paces the background reachability check.
const connectivityPollInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(os.Stdout, logging.LevelInfo)
		logging.Error("Failed to load configuration", err, nil)
		os.Exit(1)
	}

	logging.Init(os.Stdout, logLevel(cfg.Logging.Level))

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logging.Error("Failed to open local store", err,
			map[string]interface{}{"data_dir": cfg.Store.DataDir})
		os.Exit(1)
	}
	defer st.Close()

	if err := st.InitSchema(); err != nil {
		logging.Error("Failed to initialize schema", err, nil)
		os.Exit(1)
	}

	client := api.NewClient(cfg.API.BaseURL, tokenFromEnv(), cfg.API.Timeout)

	engine := syncpkg.NewEngine(st, client, syncpkg.Options{
		MaxRetries: cfg.Sync.MaxRetries,
		ItemDelay:  cfg.Sync.ItemDelay,
	})

	sched := scheduler.New(engine, &scheduler.Config{Interval: cfg.Sync.Interval})
	drafts := draft.New(st, client, sched.IsOnline, &draft.Config{
		AutosaveInterval: cfg.Draft.AutosaveInterval,
		TTL:              cfg.Draft.TTL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()
	drafts.Start(ctx)
	defer drafts.Stop()

	go watchConnectivity(ctx, client, sched)

	hub := NewWSHub()
	go func() {
		for status := range sched.Subscribe() {
			hub.BroadcastStatus(status)
		}
	}()

	srv := &http.Server{
		Addr:    "localhost:" + cfg.Server.Port,
		Handler: newRouter(engine, sched, drafts, hub),
	}

	go func() {
		logging.Info("Engine daemon listening",
			map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed", err, nil)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logging.Info("Shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

// newRouter wires the workout, draft, status, and trigger endpoints.
func newRouter(engine *syncpkg.Engine, sched *scheduler.Scheduler, drafts *draft.Manager, hub *WSHub) *mux.Router {
	r := mux.NewRouter()

	h := &handlers{engine: engine, sched: sched, drafts: drafts}
	h.register(r)

	r.HandleFunc("/api/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fitsync-engined"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, sched.Status())
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/sync/trigger", func(w http.ResponseWriter, req *http.Request) {
		summary, err := sched.SyncNow(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if summary == nil {
			// A pass is already active or the engine is offline.
			writeJSON(w, http.StatusAccepted, sched.Status())
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}).Methods(http.MethodPost)

	r.HandleFunc("/ws", HandleWebSocket(hub, sched))

	return r
}

// watchConnectivity polls the remote health endpoint and feeds the result to
// the scheduler. This stands in for a platform connectivity signal.
func watchConnectivity(ctx context.Context, client *api.Client, sched *scheduler.Scheduler) {
	ticker := time.NewTicker(connectivityPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := client.Ping(pingCtx)
			cancel()
			sched.SetOnline(ctx, err == nil)
		}
	}
}

// tokenFromEnv returns a token provider reading SYNC_TOKEN, or nil when the
// remote accepts unauthenticated requests. Token refresh is the job of
// whatever process writes the environment; the engine treats it as opaque.
func tokenFromEnv() api.TokenProvider {
	token := os.Getenv("SYNC_TOKEN")
	if token == "" {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		return token, nil
	}
}

func logLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
