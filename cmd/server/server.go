// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Picklepoint/internal/api"
	"github.com/codr1/Picklepoint/internal/api/bookings"
	"github.com/codr1/Picklepoint/internal/api/events"
	"github.com/codr1/Picklepoint/internal/booking"
	"github.com/codr1/Picklepoint/internal/cache"
	"github.com/codr1/Picklepoint/internal/config"
	"github.com/codr1/Picklepoint/internal/db"
	"github.com/codr1/Picklepoint/internal/email"
	"github.com/codr1/Picklepoint/internal/feed"
	"github.com/codr1/Picklepoint/internal/ratelimit"
	"github.com/codr1/Picklepoint/internal/scheduler"
)

// app holds the long-lived components built from configuration.
type app struct {
	server    *http.Server
	database  *db.DB
	feed      feed.Feed
	dayCache  *cache.DayBookings
	notifier  *email.Notifier
	limiter   *ratelimit.Limiter
	scheduler *scheduler.Service

	closeOnce sync.Once
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	loc := cfg.Booking.Location()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.database = database
	a.closers = append(a.closers, database.Close)

	store := db.NewStore(database, loc)
	if err := seedCourts(ctx, store, cfg.Booking.CourtsFile); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		redisFeed, err := feed.NewRedisFeed(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect booking feed: %w", err)
		}
		a.feed = redisFeed
		a.closers = append(a.closers, redisFeed.Close)
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("Using Redis booking feed")
	} else {
		a.feed = feed.NewBroker()
		log.Info().Msg("Using in-process booking feed")
	}

	a.dayCache = cache.NewDayBookings(store, cache.DefaultTTL)

	var sender email.EmailSender
	if cfg.Email.Enabled {
		ses, err := email.NewSESClient(ctx, cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create SES client: %w", err)
		}
		sender = ses
	} else {
		log.Warn().Msg("Email disabled; booking notifications will not be sent")
	}
	a.notifier = email.NewNotifier(sender, cfg.App.VenueName, cfg.Email.SendTimeout)

	service, err := booking.NewService(store, booking.Options{
		Clock:       booking.SystemClock(loc),
		Publisher:   feed.Multi(a.dayCache, a.feed),
		Notifier:    a.notifier,
		Reader:      a.dayCache,
		PhoneRegion: cfg.Booking.PhoneRegion,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RateLimit.Enabled {
		a.limiter = ratelimit.New(&ratelimit.Config{
			MaxPerIP:       cfg.RateLimit.Attempts,
			MaxPerCustomer: cfg.RateLimit.CustomerAttempts,
			Window:         cfg.RateLimit.Window,
		})
		a.closers = append(a.closers, func() error { a.limiter.Close(); return nil })
	}

	if cfg.Scheduler.Enabled {
		if err := a.startScheduler(cfg, store, service); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.server = newServer(cfg, bookings.New(bookings.Config{
		Service:         service,
		Courts:          store,
		Bookings:        store,
		Limiter:         a.limiter,
		TrustProxy:      cfg.RateLimit.TrustProxy,
		VenueName:       cfg.App.VenueName,
		Location:        loc,
		CalendarMaxDays: cfg.Booking.CalendarMaxDays,
	}), events.NewHandler(a.feed, 0))
	return a, nil
}

func seedCourts(ctx context.Context, store *db.Store, path string) error {
	courts, err := db.LoadCourts(path)
	if err != nil {
		return fmt.Errorf("load court catalog: %w", err)
	}
	saved, err := store.UpsertCourts(ctx, courts)
	if err != nil {
		return fmt.Errorf("seed courts: %w", err)
	}
	log.Info().Int("courts", len(saved)).Str("path", path).Msg("Court catalog applied")
	return nil
}

func (a *app) startScheduler(cfg *config.Config, store *db.Store, service *booking.Service) error {
	if err := scheduler.Init(cfg.Booking.Location()); err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	svc, err := scheduler.ServiceInstance()
	if err != nil {
		return err
	}
	reminders := scheduler.NewReminders(store, a.notifier, service.Now)
	if err := scheduler.RegisterReminderJob(svc, reminders, cfg.Scheduler.ReminderCron); err != nil {
		return err
	}
	svc.Start()
	a.scheduler = svc
	a.closers = append(a.closers, svc.Stop)
	return nil
}

// waitForNotifications blocks until queued emails are sent or ctx expires.
func (a *app) waitForNotifications(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.notifier.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Shutdown timed out waiting for booking emails")
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				log.Error().Err(err).Msg("Error during shutdown")
			}
		}
	})
}

func newServer(cfg *config.Config, bookingHandlers *bookings.Handlers, eventStream http.Handler) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, bookingHandlers, eventStream)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, bookingHandlers *bookings.Handlers, eventStream http.Handler) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	bookingHandlers.Register(mux)
	mux.Handle("GET /api/v1/events", eventStream)
}
