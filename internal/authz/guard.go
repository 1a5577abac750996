package authz

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/soliel-ai/soliel/internal/auth"
)

// SignInPath is the surface every authorization failure redirects to.
const SignInPath = "/sign-in"

// PrincipalResolver abstracts auth.Resolver for the guard.
type PrincipalResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*auth.Principal, error)
}

// DenialRecorder counts guard denials, normally backed by prometheus.
type DenialRecorder interface {
	RecordDenial(route, reason string)
}

// Redirect instructs the caller to send the user elsewhere instead of
// rendering. Result-style: the guard never writes to the response.
type Redirect struct {
	Location string
	Status   int
}

// Guard composes the session resolver and the role authorizer for
// protected routes.
type Guard struct {
	logger     *slog.Logger
	resolver   PrincipalResolver
	authorizer *Authorizer
	metrics    DenialRecorder
}

// NewGuard constructs a Guard. metrics may be nil.
func NewGuard(logger *slog.Logger, resolver PrincipalResolver, authorizer *Authorizer, metrics DenialRecorder) *Guard {
	return &Guard{logger: logger, resolver: resolver, authorizer: authorizer, metrics: metrics}
}

// Check resolves the request's principal and authorizes it against the
// required roles. It returns either the principal or a redirect, never
// both. Unauthenticated and unauthorized both land on the sign-in
// surface; the unauthorized case carries an error code.
func (g *Guard) Check(r *http.Request, required RoleSet) (*auth.Principal, *Redirect) {
	principal, err := g.resolver.Resolve(r.Context(), r)
	if err != nil {
		// Store failure: deny rather than fail open.
		g.log(r, "resolver error", err)
		return nil, g.deny(r, "resolver_error")
	}
	if principal == nil {
		return nil, &Redirect{Location: SignInPath, Status: http.StatusSeeOther}
	}
	if !g.authorizer.Authorize(r.Context(), principal, required).Allowed() {
		return nil, g.deny(r, "role_mismatch")
	}
	return principal, nil
}

// Require wraps a handler with Check and stores the principal in the
// request context. Handlers behind it treat the principal as settled
// for the rest of the request.
func (g *Guard) Require(required RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, redirect := g.Check(r, required)
			if redirect != nil {
				http.Redirect(w, r, redirect.Location, redirect.Status)
				return
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePath is Require using the static route requirement table. It
// panics at startup when the path has no declared requirement, so a
// protected route can never silently ship without one.
func (g *Guard) RequirePath(path string) func(http.Handler) http.Handler {
	required, ok := RequirementFor(path)
	if !ok {
		panic("authz: no requirement declared for route " + path)
	}
	return g.Require(required)
}

func (g *Guard) deny(r *http.Request, reason string) *Redirect {
	if g.metrics != nil {
		g.metrics.RecordDenial(r.URL.Path, reason)
	}
	v := url.Values{}
	v.Set("error", "access_denied")
	return &Redirect{Location: SignInPath + "?" + v.Encode(), Status: http.StatusSeeOther}
}

func (g *Guard) log(r *http.Request, msg string, err error) {
	if g.logger != nil {
		g.logger.Warn(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}

type principalContextKey struct{}

// ContextWithPrincipal stores the guarded principal in context.
func ContextWithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal placed by the guard.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalContextKey{}).(*auth.Principal)
	return p
}
