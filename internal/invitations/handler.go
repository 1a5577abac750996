package invitations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/soliel-ai/soliel/internal/auth"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
)

// Handler serves the public invitation acceptance flow.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	authService    *auth.Service
	resolver       *auth.Resolver
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authService *auth.Service, resolver *auth.Resolver, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		authService:    authService,
		resolver:       resolver,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers the acceptance routes. They are public: the
// token itself is the credential at this point.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accept-invitation", h.showAccept)
	r.Post("/accept-invitation", h.handleAccept)
}

type acceptPageData struct {
	Token      string
	Email      string
	Role       string
	ExpiresAt  time.Time
	HasAccount bool
	Errors     map[string]string
}

type acceptForm struct {
	FullName string `validate:"required,min=2"`
	Password string `validate:"required,min=8"`
	Confirm  string `validate:"required,eqfield=Password"`
}

func (h *Handler) showAccept(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.redirectFault(w, r, err)
		return
	}

	principal, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		h.logger.Warn("resolve during accept", slog.Any("error", err))
		principal = nil
	}

	h.renderAccept(w, r, http.StatusOK, acceptPageData{
		Token:      inv.Token,
		Email:      inv.Email,
		Role:       string(inv.Role),
		ExpiresAt:  inv.ExpiresAt,
		HasAccount: principal != nil,
	})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	token := r.PostFormValue("token")

	// Re-validate right before mutating; the service revalidates again
	// inside the acceptance transaction.
	inv, err := h.service.Validate(r.Context(), token)
	if err != nil {
		h.redirectFault(w, r, err)
		return
	}

	principal, err := h.resolver.Resolve(r.Context(), r)
	if err != nil {
		h.logger.Warn("resolve during accept", slog.Any("error", err))
		principal = nil
	}

	var principalID int64
	if principal != nil {
		principalID = principal.ID
	} else {
		form := acceptForm{
			FullName: r.PostFormValue("full_name"),
			Password: r.PostFormValue("password"),
			Confirm:  r.PostFormValue("confirm_password"),
		}
		errs := make(map[string]string)
		if err := h.validator.Struct(form); err != nil {
			for _, fieldErr := range err.(validator.ValidationErrors) {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
		if len(errs) > 0 {
			h.renderAccept(w, r, http.StatusBadRequest, acceptPageData{
				Token:     inv.Token,
				Email:     inv.Email,
				Role:      string(inv.Role),
				ExpiresAt: inv.ExpiresAt,
				Errors:    errs,
			})
			return
		}
		// The account is created for the invited address, never for an
		// address supplied by the form.
		user, err := h.authService.SignUp(r.Context(), inv.Email, form.FullName, form.Password)
		if err != nil {
			h.logger.Warn("sign up via invitation", slog.Any("error", err))
			h.renderAccept(w, r, http.StatusBadRequest, acceptPageData{
				Token:     inv.Token,
				Email:     inv.Email,
				Role:      string(inv.Role),
				ExpiresAt: inv.ExpiresAt,
				Errors:    map[string]string{"general": "Could not create the account. The email may already be registered."},
			})
			return
		}
		principalID = user.ID
		h.signIn(w, r, user.ID)
	}

	membership, err := h.service.Accept(r.Context(), token, principalID)
	if err != nil {
		h.redirectFault(w, r, err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Invitation accepted. Welcome!"})
	}
	if membership.Role == InviteRoleCompanyAdmin {
		http.Redirect(w, r, "/company-dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/student-dashboard", http.StatusSeeOther)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, userID int64) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	sess.SetUser(strconv.FormatInt(userID, 10))
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.authService.RegisterSession(r.Context(), sess.ID, userID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
}

// redirectFault sends lifecycle faults to the sign-in surface with a
// precise error code, never a 500.
func (h *Handler) redirectFault(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, ErrMissingToken) && !errors.Is(err, ErrInvalidToken) &&
		!errors.Is(err, ErrExpiredToken) && !errors.Is(err, ErrAlreadyAccepted) {
		h.logger.Warn("accept invitation", slog.Any("error", err))
	}
	http.Redirect(w, r, "/sign-in?error="+RedirectCode(err), http.StatusSeeOther)
}

func (h *Handler) renderAccept(w http.ResponseWriter, r *http.Request, status int, data acceptPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Accept invitation",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/accept-invitation.html", viewData); err != nil {
		h.logger.Error("render accept invitation", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
