package session

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billingportal/internal/auth/domain"
	"go.uber.org/zap"
)

// Resolver turns the session cookie of a request into an Identity.
// Every failure, including provider or storage errors, collapses to
// domain.ErrUnauthenticated.
type Resolver struct {
	sessions *Manager
	authsvc  domain.Service
	log      *zap.Logger
}

func NewResolver(sessions *Manager, authsvc domain.Service, log *zap.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		authsvc:  authsvc,
		log:      log.Named("auth.session.resolver"),
	}
}

func (r *Resolver) Resolve(c *gin.Context) (*domain.Identity, error) {
	token, ok := r.sessions.ReadToken(c)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return r.ResolveToken(c.Request.Context(), token)
}

func (r *Resolver) ResolveToken(ctx context.Context, token string) (*domain.Identity, error) {
	identity, err := r.authsvc.Identity(ctx, token)
	if err != nil {
		if !isExpectedSessionErr(err) {
			r.log.Warn("identity lookup failed", zap.Error(err))
		}
		return nil, domain.ErrUnauthenticated
	}
	if identity == nil || identity.ID == 0 {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

func isExpectedSessionErr(err error) bool {
	return errors.Is(err, domain.ErrInvalidSession) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrSessionRevoked) ||
		errors.Is(err, domain.ErrUserNotFound)
}
