package companies

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/invitations"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
)

// Handler wires HTTP endpoints for company pages.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	invitations *invitations.Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, invs *invitations.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		invitations: invs,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers company-admin routes. The caller guards them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/company-dashboard", h.showDashboard)
	r.Get("/employees", h.showEmployees)
	r.Post("/employees/invite", h.handleInvite)
	r.Post("/employees/remove", h.handleRemove)
}

// MountAdminRoutes registers the super-admin company pages.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/admin/companies", h.showAdminCompanies)
	r.Post("/admin/companies", h.handleCreateCompany)
}

type dashboardData struct {
	Company *Company
	Members int
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	company, err := h.service.CompanyForAdmin(r.Context(), principal.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.renderError(w, r, err)
		return
	}
	data := dashboardData{Company: company}
	if company != nil {
		members, err := h.service.Members(r.Context(), company.ID)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		data.Members = len(members)
	}
	h.render(w, r, "pages/company-dashboard.html", "Company dashboard", data)
}

type employeesData struct {
	Company     *Company
	Members     []Member
	Invitations []invitationRow
	Errors      map[string]string
}

type invitationRow struct {
	Email     string
	Role      string
	Status    string
	ExpiresAt time.Time
}

type inviteForm struct {
	Email string `validate:"required,email"`
	Role  string `validate:"required,oneof=member company_admin"`
}

func (h *Handler) showEmployees(w http.ResponseWriter, r *http.Request) {
	h.renderEmployees(w, r, nil)
}

func (h *Handler) renderEmployees(w http.ResponseWriter, r *http.Request, formErrors map[string]string) {
	principal := authz.PrincipalFromContext(r.Context())
	company, err := h.service.CompanyForAdmin(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.render(w, r, "pages/employees.html", "Employees", employeesData{Errors: formErrors})
			return
		}
		h.renderError(w, r, err)
		return
	}

	members, err := h.service.Members(r.Context(), company.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	invs, err := h.invitations.ListByCompany(r.Context(), company.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	now := time.Now()
	rows := make([]invitationRow, 0, len(invs))
	for i := range invs {
		rows = append(rows, invitationRow{
			Email:     invs[i].Email,
			Role:      string(invs[i].Role),
			Status:    invs[i].Status(now),
			ExpiresAt: invs[i].ExpiresAt,
		})
	}
	h.render(w, r, "pages/employees.html", "Employees", employeesData{
		Company:     company,
		Members:     members,
		Invitations: rows,
		Errors:      formErrors,
	})
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	company, err := h.service.CompanyForAdmin(r.Context(), principal.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	form := inviteForm{
		Email: r.PostFormValue("email"),
		Role:  r.PostFormValue("role"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.renderEmployees(w, r, errs)
		return
	}

	_, err = h.invitations.Issue(r.Context(), invitations.IssueParams{
		CompanyID: company.ID,
		Email:     form.Email,
		Role:      invitations.InviteRole(form.Role),
		ActorID:   principal.ID,
	})
	if err != nil {
		if errors.Is(err, invitations.ErrSeatLimitReached) {
			errs["general"] = "All seats are taken. Remove a member or upgrade the plan."
		} else {
			h.logger.Warn("issue invitation", slog.Any("error", err))
			errs["general"] = "Could not send the invitation."
		}
		h.renderEmployees(w, r, errs)
		return
	}

	h.flash(r, "success", "Invitation sent to "+form.Email)
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	company, err := h.service.CompanyForAdmin(r.Context(), principal.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	userID, err := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveMember(r.Context(), company.ID, userID, principal.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.renderError(w, r, err)
		return
	}
	h.flash(r, "success", "Member removed")
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

type adminCompaniesData struct {
	Companies []Company
	Errors    map[string]string
}

type createCompanyForm struct {
	Name      string `validate:"required,min=2"`
	Email     string `validate:"required,email"`
	Plan      string `validate:"omitempty,oneof=basic growth enterprise"`
	SeatLimit int    `validate:"omitempty,gte=1,lte=10000"`
}

func (h *Handler) showAdminCompanies(w http.ResponseWriter, r *http.Request) {
	h.renderAdminCompanies(w, r, nil)
}

func (h *Handler) renderAdminCompanies(w http.ResponseWriter, r *http.Request, formErrors map[string]string) {
	all, err := h.service.All(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/admin-companies.html", "Companies", adminCompaniesData{Companies: all, Errors: formErrors})
}

func (h *Handler) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())

	seatLimit, _ := strconv.Atoi(r.PostFormValue("seat_limit"))
	form := createCompanyForm{
		Name:      r.PostFormValue("name"),
		Email:     r.PostFormValue("email"),
		Plan:      r.PostFormValue("plan"),
		SeatLimit: seatLimit,
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) == 0 {
		if _, err := h.service.Create(r.Context(), form.Name, form.Email, form.Plan, form.SeatLimit, principal.ID); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				errs["general"] = "A company with that name or email already exists."
			} else {
				h.logger.Warn("create company", slog.Any("error", err))
				errs["general"] = "Could not create the company."
			}
		}
	}
	if len(errs) > 0 {
		h.renderAdminCompanies(w, r, errs)
		return
	}
	h.flash(r, "success", "Company created")
	http.Redirect(w, r, "/admin/companies", http.StatusSeeOther)
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
	h.logger.Error("company page", slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
