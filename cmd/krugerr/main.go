package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
	"github.com/reggaepotato22/krugerr-brendt/internal/assistant"
	"github.com/reggaepotato22/krugerr-brendt/internal/config"
	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/db"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/imagestore"
	"github.com/reggaepotato22/krugerr-brendt/internal/live"
	"github.com/reggaepotato22/krugerr-brendt/internal/localstore"
	"github.com/reggaepotato22/krugerr-brendt/internal/logging"
	"github.com/reggaepotato22/krugerr-brendt/internal/notify"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote/rest"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote/supabase"
	"github.com/reggaepotato22/krugerr-brendt/internal/seed"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
	"github.com/reggaepotato22/krugerr-brendt/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeWithLog(database, "database", logger)

	bus, closeBus := newBus(cfg, logger)
	defer closeBus()
	local := localstore.New(database, bus, logger)

	remotes, err := newRemotes(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer remotes.close()

	hub := live.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	events := live.NewBroadcaster(hub)

	poller := reconcile.NewPoller(logger)
	w := &wiring{ctx: ctx, events: events, poller: poller, logger: logger}

	seedProps, err := seed.Properties()
	if err != nil {
		return err
	}
	seedProjects, err := seed.Projects()
	if err != nil {
		return err
	}

	props := wire(w, cfg.PropertyPollInterval, reconcile.New("properties", localstore.KeyProperties, local,
		reconcile.Options[domain.Property]{Remote: remotes.properties, Seed: seedProps, Timeout: cfg.RemoteTimeout}, logger))
	projects := wire(w, 0, reconcile.New("projects", localstore.KeyProjects, local,
		reconcile.Options[domain.Project]{Seed: seedProjects}, logger))
	inquiries := wire(w, cfg.InquiryPollInterval, reconcile.New("inquiries", localstore.KeyInquiries, local,
		reconcile.Options[domain.Inquiry]{Remote: remotes.inquiries, SkipRemoteDelete: true, Timeout: cfg.RemoteTimeout}, logger))
	chats := wire(w, cfg.ChatPollInterval, reconcile.New("chats", localstore.KeyChats, local,
		reconcile.Options[domain.ChatSession]{Remote: remotes.chats, Timeout: cfg.RemoteTimeout}, logger))
	defer w.close()
	if w.err != nil {
		return w.err
	}

	poller.Start()
	defer poller.Stop()

	disk, err := imagestore.NewDisk(cfg.ImagePath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize image store: %w", err)
	}

	rates := currency.NewRateCache(currency.NewHTTPFetcher(cfg.FXURL, cfg.RemoteTimeout), cfg.FXTTL, logger)
	leads := service.NewLeadService(inquiries, logger)

	server := web.NewServer(web.Deps{
		Catalog:     service.NewCatalogService(props, projects, analytics.NewTracker(local), leads, rates, logger),
		Leads:       leads,
		Chats:       service.NewChatService(chats, newResponder(cfg, logger), assistant.NewHandoff(cfg.WhatsAppNumber, cfg.ContactEmail), logger),
		Uploads:     service.NewUploadService(remotes.uploader, disk, imagestore.NewRecords(database), logger),
		Preferences: analytics.NewPreferenceStore(local),
		Rates:       rates,
		Hub:         hub,
		Events:      events,
		Auth: web.Auth{
			Secret:        cfg.JWTSecret,
			TokenTTL:      cfg.JWTExpiration,
			AdminPassword: cfg.AdminPassword,
		},
		RateLimit:      web.RateLimit{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow},
		AllowedOrigins: cfg.CORSOrigins,
	}, logger)
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is not set, admin login is disabled")
	}

	srv := server.HTTPServer(cfg.ListenAddr)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	return nil
}

// newBus shares storage events over NATS when configured, so several
// instances behave like tabs of one browser. Otherwise events stay in
// process.
func newBus(cfg *config.Config, logger *slog.Logger) (notify.Bus, func()) {
	if cfg.NATSURL != "" {
		bus, err := notify.ConnectNATS(cfg.NATSURL, logger)
		if err == nil {
			logger.Info("using NATS notification bus", "url", cfg.NATSURL)
			return bus, bus.Close
		}
		logger.Warn("NATS unavailable, using in-process notification bus", "error", err)
	}
	return notify.NewMemoryBus(logger), func() {}
}

type remotes struct {
	properties remote.Store[domain.Property]
	inquiries  remote.Store[domain.Inquiry]
	chats      remote.Store[domain.ChatSession]
	uploader   interface {
		Upload(ctx context.Context, filename, mimeType string, r io.Reader) (string, error)
	}
	close func()
}

// newRemotes picks Postgres when DATABASE_URL is set, the REST API when
// API_BASE_URL is set, and local-only collections otherwise. Uploads always
// go through the REST API when it is configured.
func newRemotes(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*remotes, error) {
	r := &remotes{close: func() {}}

	var client *rest.Client
	if cfg.APIBaseURL != "" {
		client = rest.NewClient(cfg.APIBaseURL, cfg.RemoteTimeout, logger)
		r.uploader = rest.NewUploader(client)
	}

	switch {
	case cfg.DatabaseURL != "":
		pg, err := supabase.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		r.close = func() { closeWithLog(pg, "postgres", logger) }

		if r.properties, err = table[domain.Property](ctx, pg, "properties"); err != nil {
			r.close()
			return nil, err
		}
		if r.inquiries, err = table[domain.Inquiry](ctx, pg, "inquiries"); err != nil {
			r.close()
			return nil, err
		}
		if r.chats, err = table[domain.ChatSession](ctx, pg, "chat_sessions"); err != nil {
			r.close()
			return nil, err
		}
		logger.Info("using postgres remote store")
	case client != nil:
		r.properties = rest.NewCollection[domain.Property](client, "properties")
		r.inquiries = rest.NewCollection[domain.Inquiry](client, "inquiries")
		r.chats = rest.NewCollection[domain.ChatSession](client, "chats")
		logger.Info("using REST remote store", "base_url", cfg.APIBaseURL)
	default:
		logger.Info("no remote store configured, running local-only")
	}
	return r, nil
}

func table[T domain.Record[T]](ctx context.Context, pg *sql.DB, name string) (remote.Store[T], error) {
	t, err := supabase.NewTable[T](pg, name)
	if err != nil {
		return nil, err
	}
	if err := t.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// wiring hooks every collection into live updates, cross-instance sync and
// polling. The first error is kept in err.
type wiring struct {
	ctx    context.Context
	events *live.Broadcaster
	poller *reconcile.Poller
	logger *slog.Logger

	stops []func()
	err   error
}

func wire[T domain.Record[T]](w *wiring, poll time.Duration, c *reconcile.Collection[T]) *reconcile.Collection[T] {
	w.stops = append(w.stops, c.OnChange(func(items []T) {
		w.events.CollectionChanged(c.Name(), len(items))
	}))

	if err := c.Load(w.ctx); err != nil {
		w.logger.Error("initial load failed", "collection", c.Name(), "error", err)
	}

	stop, err := c.Watch()
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("failed to watch %s: %w", c.Name(), err)
	}
	if stop != nil {
		w.stops = append(w.stops, stop)
	}

	if poll > 0 {
		if err := w.poller.Every(poll, c); err != nil && w.err == nil {
			w.err = err
		}
	}
	return c
}

func (w *wiring) close() {
	for _, stop := range w.stops {
		stop()
	}
}

func newResponder(cfg *config.Config, logger *slog.Logger) assistant.Responder {
	canned := assistant.NewCanned()
	if cfg.ClaudeAPIKey == "" {
		logger.Info("using canned chat replies")
		return canned
	}
	logger.Info("using Claude chat replies", "model", cfg.ClaudeModel)
	return assistant.NewFallback(assistant.NewClaude(cfg.ClaudeAPIKey, cfg.ClaudeModel), canned, logger)
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
