// Package api implements HTTP handlers and helpers for the CARP solving service.
package api

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"carpnav/internal/config"
	"carpnav/internal/solver"
	"carpnav/internal/model"
	"carpnav/internal/store"
	"carpnav/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Broker EventBroker
	Solver *solver.Solver

	cfg      config.Config
	validate *validator.Validate
	limiter  *RateLimiter
	notifier *webhooks.Notifier
	hookSub  chan model.Event
}

// NewServer creates a Server. If no database URL is configured, uses the
// in-memory store; without a Redis URL, the in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
	proxies, err := cfg.Rate.ProxyPrefixes()
	if err != nil {
		return nil, err
	}
	var s store.Store
	if strings.TrimSpace(cfg.Storage.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			if err := sp.Migrate(context.Background()); err != nil {
				_ = sp.Close()
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.Broker.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.Broker.RedisURL); err == nil {
			broker = rb
		} else {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
		}
	}
	srv := &Server{
		Store:    s,
		Broker:   broker,
		Solver:   &solver.Solver{Budget: cfg.Solver.TimeBudget},
		cfg:      cfg,
		validate: validator.New(),
		limiter:  NewRateLimiter(cfg.Rate.RPS, cfg.Rate.Burst, proxies),
	}
	if len(cfg.Webhooks.URLs) > 0 {
		srv.startWebhooks()
	}
	return srv, nil
}

// startWebhooks forwards every broker event to the webhook notifier.
func (s *Server) startWebhooks() {
	wh := s.cfg.Webhooks
	s.notifier = webhooks.NewNotifier(wh.URLs, wh.Secret, wh.Events, wh.MaxAttempts)
	s.hookSub = s.Broker.Subscribe(TopicAll)
	s.notifier.Start()
	go func(ch chan model.Event) {
		for evt := range ch {
			s.notifier.Enqueue(evt)
		}
	}(s.hookSub)
	log.Info().Strs("urls", wh.URLs).Strs("events", wh.Events).Msg("webhooks enabled")
}

// Close releases the broker, the rate limiter janitor and the store.
func (s *Server) Close() error {
	s.limiter.Stop()
	if s.notifier != nil {
		s.Broker.Unsubscribe(TopicAll, s.hookSub)
		s.notifier.Stop()
	}
	err := s.Broker.Close()
	if c, ok := s.Store.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
