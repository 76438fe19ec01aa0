// Package delegated resolves a subject identity into a ready-to-use API
// client. It ties together the durable session store, the in-memory token
// cache and the credential exchange so callers never see tokens or handles.
package delegated

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/internal/store"
	"github.com/skilltreehq/mentor-platform/internal/tokencache"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
	"github.com/skilltreehq/mentor-platform/pkg/metrics"
)

// Resolver turns a subject identifier into an authenticated API client.
type Resolver interface {
	// ResolveClientForSubject returns a client bound to a fresh delegated
	// access token for the subject, plus the id of the session that backed
	// it. Returns ErrNoActiveSession or ErrReauthRequired when the subject
	// must go through the interactive consent flow.
	ResolveClientForSubject(ctx context.Context, subject string) (*graph.Client, uuid.UUID, error)
}

// SessionResolver is the production Resolver backed by Postgres, the process
// token cache and the identity-provider exchange.
type SessionResolver struct {
	store     store.SessionStore
	cache     *tokencache.Cache
	exchanger graph.TokenExchanger
	scopes    []string
	metrics   *metrics.Metrics
	log       logger.Logger

	// clientOpts is applied to every constructed client, mainly so tests
	// can point it at a local server.
	clientOpts []graph.Option
}

// ResolverParams collects the dependencies of a SessionResolver.
type ResolverParams struct {
	Store      store.SessionStore
	Cache      *tokencache.Cache
	Exchanger  graph.TokenExchanger
	Scopes     []string
	Metrics    *metrics.Metrics
	Logger     logger.Logger
	ClientOpts []graph.Option
}

// NewSessionResolver builds a resolver from its dependencies.
func NewSessionResolver(p ResolverParams) *SessionResolver {
	return &SessionResolver{
		store:      p.Store,
		cache:      p.Cache,
		exchanger:  p.Exchanger,
		scopes:     p.Scopes,
		metrics:    p.Metrics,
		log:        p.Logger,
		clientOpts: p.ClientOpts,
	}
}

// ResolveClientForSubject implements Resolver. The session row is the source
// of truth: a subject without an active row is never served, no matter what
// the token cache holds. Only a cache miss reaches the identity provider.
func (r *SessionResolver) ResolveClientForSubject(ctx context.Context, subject string) (*graph.Client, uuid.UUID, error) {
	session, err := r.lookup(ctx, subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("look up delegated session: %w", err)
	}
	if session == nil {
		// A cached token must not outlive the session rows behind it.
		r.cache.Delete(subject, r.scopes)
		r.log.Debug("no active delegated session", logger.SubjectField(subject))
		return nil, uuid.Nil, ErrNoActiveSession
	}

	if token, ok := r.cache.Get(subject, r.scopes); ok {
		r.metrics.RecordCacheHit()
		return r.newClient(token), session.ID, nil
	}
	r.metrics.RecordCacheMiss()

	result, err := r.exchanger.Exchange(ctx, session.SessionKey, r.scopes)
	if err != nil {
		r.metrics.RecordTokenExchange(metrics.ExchangeError)
		return nil, uuid.Nil, err
	}
	if result.ReauthRequired {
		r.metrics.RecordTokenExchange(metrics.ExchangeReauth)
		return nil, uuid.Nil, r.revokeSessions(ctx, subject)
	}
	r.metrics.RecordTokenExchange(metrics.ExchangeOK)

	r.cache.Put(subject, r.scopes, result.AccessToken)

	// A stale last_used_at is acceptable; the token itself is already good.
	if err := r.store.Touch(ctx, session.ID); err != nil {
		r.log.Warn("failed to touch delegated session",
			logger.StringField("session_id", session.ID.String()),
			logger.ErrorField(err))
	}

	return r.newClient(result.AccessToken), session.ID, nil
}

// lookup picks the store query by the shape of the subject identifier. A
// value containing "@" is treated as a mail address, anything else as the
// provider's opaque object id.
func (r *SessionResolver) lookup(ctx context.Context, subject string) (*store.Session, error) {
	if strings.Contains(subject, "@") {
		return r.store.FindActiveByEmail(ctx, subject)
	}
	return r.store.FindActiveBySubjectID(ctx, subject)
}

// revokeSessions deactivates every session for the subject and reports how
// many were closed. Deactivation happens before ErrReauthRequired reaches
// the caller so a retry cannot loop on the same dead handle. The subject's
// cached token goes too.
func (r *SessionResolver) revokeSessions(ctx context.Context, subject string) error {
	r.cache.Delete(subject, r.scopes)

	revoked, err := r.store.DeactivateAllForSubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("deactivate sessions after rejected exchange: %w", err)
	}
	r.metrics.RecordSessionsRevoked(revoked)
	r.log.Info("deactivated delegated sessions after rejected exchange",
		logger.SubjectField(subject),
		logger.Int64Field("sessions_revoked", revoked))
	return ErrReauthRequired
}

func (r *SessionResolver) newClient(token string) *graph.Client {
	opts := append([]graph.Option{graph.WithLogger(r.log)}, r.clientOpts...)
	return graph.NewClient(token, opts...)
}
