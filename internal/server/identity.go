package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

const piUserHeader = "X-Pi-User"

type userKey struct{}

// PiAuthenticator verifies a Pi user access token.
//
// Implemented by [services.PiService].
type PiAuthenticator interface {
	Me(ctx context.Context, accessToken string) (*services.PiUser, error)
}

// Identity attaches the calling Pi user to the request context.
//
// A bearer token is verified against the Pi platform /v2/me endpoint. Without one, the uid in the
// X-Pi-User header is taken as-is only when trustHeader is set, which is how the sandbox client
// identifies itself. Otherwise the header is ignored and the request continues anonymously.
type Identity struct {
	users       *repositories.UserRepository
	pi          PiAuthenticator
	trustHeader bool
	logger      *log.Logger
}

// NewIdentity creates an [Identity]. A nil pi disables bearer token verification.
func NewIdentity(users *repositories.UserRepository, pi PiAuthenticator, trustHeader bool, logger *log.Logger) *Identity {
	return &Identity{users: users, pi: pi, trustHeader: trustHeader, logger: logger}
}

// Middleware resolves the user and stores it with [WithUser].
func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := i.resolve(r)
		switch {
		case err == nil && user != nil:
			r = r.WithContext(WithUser(r.Context(), user))
		case errors.Is(err, shared.ErrAuthFailed):
			respondError(w, http.StatusUnauthorized, "Invalid Pi access token")
			return
		case err != nil:
			i.logger.Warn("failed to resolve user", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func (i *Identity) resolve(r *http.Request) (*models.User, error) {
	if token, ok := bearerToken(r); ok && i.pi != nil {
		piUser, err := i.pi.Me(r.Context(), token)
		if err != nil {
			return nil, err
		}
		return i.users.Upsert(piUser.UID, orDefault(piUser.Username, piUser.UID))
	}

	uid := strings.TrimSpace(r.Header.Get(piUserHeader))
	if uid == "" {
		return nil, nil
	}
	if !i.trustHeader {
		i.logger.Debug("ignoring unverified user header", "uid", uid)
		return nil, nil
	}
	existing, err := i.users.GetByPiUID(uid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	return i.users.Upsert(uid, uid)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user attached by [Identity.Middleware], if any.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey{}).(*models.User)
	return user, ok && user != nil
}

// requireUser writes 401 and returns false when the request is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := UserFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
	}
	return user, ok
}

// requireSelf additionally checks that the {id} path variable names the caller, by Pi uid or internal id.
func requireSelf(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}
	id := Vars(r)["id"]
	if id != user.PiUID && id != user.ID() {
		respondError(w, http.StatusForbidden, "Unauthorized")
		return nil, false
	}
	return user, true
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
