package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
)

// Handler serves the super admin pages. The caller guards every route
// with the super_admin requirement.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrfManager: csrf}
}

// MountAdminRoutes registers the administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/admin-dashboard", h.showDashboard)
	r.Get("/admin/users", h.listUsers)
	r.Post("/admin/users/{userID}/role", h.changeRole)
	r.Post("/admin/users/{userID}/active", h.setActive)
}

type dashboardData struct {
	Tallies []RoleTally
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	tallies, err := h.service.RoleTallies(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/admin-dashboard.html", "Administration", dashboardData{Tallies: tallies})
}

type listData struct {
	Listing *Listing
	Roles   []string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	listing, err := h.service.List(r.Context(), page)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	roles := make([]string, 0, len(authz.AllRoles))
	for _, role := range authz.AllRoles {
		roles = append(roles, string(role))
	}
	h.render(w, r, "pages/admin-users.html", "Users", listData{Listing: listing, Roles: roles})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	if err := h.service.ChangeRole(r.Context(), actor.ID, userID, r.PostFormValue("role")); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.flash(r, "error", "Could not change the role.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	h.flash(r, "success", "Role updated.")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	active := r.PostFormValue("active") == "true"
	actor := authz.PrincipalFromContext(r.Context())
	if err := h.service.SetActive(r.Context(), actor.ID, userID, active); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.flash(r, "error", "Could not update the account.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}
	h.flash(r, "success", "Account updated.")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("admin page", slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
