package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/companies"
	"github.com/soliel-ai/soliel/internal/courses"
	"github.com/soliel-ai/soliel/internal/invitations"
	"github.com/soliel-ai/soliel/internal/observability"
	"github.com/soliel-ai/soliel/internal/platform/httpx"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/users"
	"github.com/soliel-ai/soliel/internal/view"
	"github.com/soliel-ai/soliel/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Templates         *view.Engine
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	Guard             *authz.Guard
	HomeFor           auth.HomeLocator
	AuthHandler       *auth.Handler
	InvitationHandler *invitations.Handler
	CourseHandler     *courses.Handler
	CompanyHandler    *companies.Handler
	UsersHandler      *users.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router for the web application.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())

		// Signed-in visitors land on their role's dashboard.
		if sess != nil && sess.User() != "" && params.HomeFor != nil {
			if userID, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
				http.Redirect(w, r, params.HomeFor(r, userID), http.StatusSeeOther)
				return
			}
		}
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "Soliel",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	// Public surfaces: auth, invitation acceptance, course catalogue.
	params.AuthHandler.MountRoutes(r)
	params.InvitationHandler.MountRoutes(r)
	params.CourseHandler.MountPublicRoutes(r)

	// Guarded surfaces. Each group's requirement comes from the static
	// route table; RequirePath panics at startup on an undeclared path.
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequirePath("/student-dashboard"))
		params.CourseHandler.MountStudentRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequirePath("/instructor-dashboard"))
		params.CourseHandler.MountInstructorRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequirePath("/company-dashboard"))
		params.CompanyHandler.MountRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.RequirePath("/admin-dashboard"))
		params.UsersHandler.MountAdminRoutes(r)
		params.CompanyHandler.MountAdminRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
