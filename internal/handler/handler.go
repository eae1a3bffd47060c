// Package handler implements the resolver operations: identity checks,
// input validation, and the store calls behind every query and mutation.
package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/apperr"
	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/events"
	"meeting-scheduler-api/internal/middleware"
	"meeting-scheduler-api/internal/store"
)

// Scope decides which meetings the meetings query returns.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeParticipant Scope = "participant"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeParticipant:
		return ScopeParticipant, nil
	}
	return "", fmt.Errorf("unknown meetings scope %q", s)
}

type Handler struct {
	store    store.Store
	tokens   *auth.Tokens
	validate *validator.Validate
	events   events.Publisher
	limiter  middleware.Limiter
	scope    Scope
	now      func() time.Time
	// compares a bcrypt hash with a password
	checkPassword func(hash, pw string) bool
}

type Option func(*Handler)

func WithEvents(p events.Publisher) Option { return func(h *Handler) { h.events = p } }

func WithScope(s Scope) Option { return func(h *Handler) { h.scope = s } }

// WithLimiter throttles register and login per client IP.
func WithLimiter(l middleware.Limiter) Option { return func(h *Handler) { h.limiter = l } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

func New(st store.Store, tokens *auth.Tokens, opts ...Option) *Handler {
	h := &Handler{
		store:    st,
		tokens:   tokens,
		validate: newValidator(),
		events:   events.Nop{},
		scope:    ScopeAll,
		now:      time.Now,

		checkPassword: auth.CheckPassword,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func uid(ctx context.Context) (string, error) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		return "", apperr.Unauthenticated()
	}
	return id, nil
}

func internal(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

// throttle fails open when the limiter backend errors.
func (h *Handler) throttle(ctx context.Context, op string) error {
	if h.limiter == nil {
		return nil
	}
	ip := middleware.ClientIPFrom(ctx)
	ok, err := h.limiter.Allow(ctx, op+":"+ip)
	if err != nil {
		log.Warn().Err(err).Str("request_id", middleware.RequestIDFrom(ctx)).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return apperr.TooManyRequests()
	}
	return nil
}

func (h *Handler) publish(ctx context.Context, key string, ev events.MeetingEvent) {
	if err := h.events.PublishJSON(ctx, key, ev); err != nil {
		log.Warn().Err(err).
			Str("request_id", middleware.RequestIDFrom(ctx)).
			Str("event", key).
			Str("meeting_id", ev.MeetingID).
			Msg("publish failed")
	}
}
