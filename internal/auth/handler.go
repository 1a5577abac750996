package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
)

// HomeLocator decides where a freshly signed-in user lands. Injected so
// the handler does not depend on the authz package directly.
type HomeLocator func(r *http.Request, userID int64) string

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	homeFor        HomeLocator
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, homeFor HomeLocator) *Handler {
	if homeFor == nil {
		homeFor = func(*http.Request, int64) string { return "/" }
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		homeFor:        homeFor,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sign-in", h.showSignIn)
	r.Post("/sign-in", h.handleSignIn)
	r.Get("/sign-up", h.showSignUp)
	r.Post("/sign-up", h.handleSignUp)
	r.Post("/sign-out", h.handleSignOut)
	r.Get("/auth/confirm", h.handleConfirm)
	r.Get("/reset-password", h.showResetPassword)
	r.Post("/reset-password", h.handleResetPassword)
}

// redirectCodeMessages maps ?error= codes on the sign-in surface to the
// message shown to the user. Codes come from the route guard and the
// invitation lifecycle.
var redirectCodeMessages = map[string]string{
	"access_denied":    "You do not have access to that page.",
	"missing_token":    "The invitation link is missing its token.",
	"invalid_token":    "That invitation link is not valid.",
	"expired_token":    "That invitation has expired. Ask for a new one.",
	"already_accepted": "That invitation has already been used.",
}

type signInForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type signUpForm struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"required,min=2"`
	Password string `validate:"required,min=8"`
	Confirm  string `validate:"required,eqfield=Password"`
}

type signInPageData struct {
	Form   signInForm
	Errors map[string]string
	Notice string
}

type signUpPageData struct {
	Form   signUpForm
	Errors map[string]string
}

func (h *Handler) showSignIn(w http.ResponseWriter, r *http.Request) {
	data := signInPageData{}
	if code := r.URL.Query().Get("error"); code != "" {
		if msg, ok := redirectCodeMessages[code]; ok {
			data.Notice = msg
		} else {
			data.Notice = "Please sign in to continue."
		}
	}
	h.renderSignIn(w, r, http.StatusOK, data)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := signInForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)

	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err != nil {
			errs["general"] = "Email or password is not valid"
		} else {
			if sess == nil {
				h.logger.Error("session missing during sign-in")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sess.SetUser(strconv.FormatInt(user.ID, 10))
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})
			expiresAt := time.Now().Add(h.sessionManager.TTL())
			if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
				h.logger.Warn("register session", slog.Any("error", err))
			}
			http.Redirect(w, r, h.homeFor(r, user.ID), http.StatusSeeOther)
			return
		}
	}

	h.renderSignIn(w, r, http.StatusBadRequest, signInPageData{Form: form, Errors: errs})
}

func (h *Handler) showSignUp(w http.ResponseWriter, r *http.Request) {
	h.renderSignUp(w, r, http.StatusOK, signUpPageData{})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := signUpForm{
		Email:    r.PostFormValue("email"),
		FullName: r.PostFormValue("full_name"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm_password"),
	}
	errs := h.validate(form)

	if len(errs) == 0 {
		user, err := h.service.SignUp(r.Context(), form.Email, form.FullName, form.Password)
		if err != nil {
			h.logger.Warn("sign up", slog.Any("error", err))
			errs["general"] = "Could not create the account. The email may already be registered."
		} else {
			if sess != nil {
				sess.SetUser(strconv.FormatInt(user.ID, 10))
				expiresAt := time.Now().Add(h.sessionManager.TTL())
				if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
					h.logger.Warn("register session", slog.Any("error", err))
				}
			}
			http.Redirect(w, r, "/student-dashboard", http.StatusSeeOther)
			return
		}
	}

	h.renderSignUp(w, r, http.StatusBadRequest, signUpPageData{Form: form, Errors: errs})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleConfirm redeems a one-time email token, used by the password
// reset flow. Success forwards to the next step; any failure redirects
// with a generic code so the response does not reveal token state.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenHash := q.Get("token_hash")
	tokenType := OneTimeTokenType(q.Get("type"))
	next := q.Get("next")
	if next == "" || next[0] != '/' {
		next = "/reset-password"
	}

	if tokenHash == "" || !tokenType.Valid() {
		http.Redirect(w, r, confirmFailureURL(), http.StatusSeeOther)
		return
	}

	userID, err := h.service.VerifyOneTimeToken(r.Context(), tokenType, tokenHash)
	if err != nil {
		http.Redirect(w, r, confirmFailureURL(), http.StatusSeeOther)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set("recovery_user", strconv.FormatInt(userID, 10))
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

type resetPasswordForm struct {
	Password string `validate:"required,min=8"`
	Confirm  string `validate:"required,eqfield=Password"`
}

type resetPasswordPageData struct {
	Form   resetPasswordForm
	Errors map[string]string
	Notice string
}

func (h *Handler) showResetPassword(w http.ResponseWriter, r *http.Request) {
	data := resetPasswordPageData{}
	if r.URL.Query().Get("error_code") == "otp_expired" {
		data.Notice = "That reset link is no longer valid. Request a new one."
	}
	h.renderPage(w, r, http.StatusOK, "pages/reset-password.html", "Reset password", data)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, confirmFailureURL(), http.StatusSeeOther)
		return
	}
	userID, err := strconv.ParseInt(sess.Get("recovery_user"), 10, 64)
	if err != nil || userID == 0 {
		// Only a redeemed recovery token puts the user id in the session.
		http.Redirect(w, r, confirmFailureURL(), http.StatusSeeOther)
		return
	}

	form := resetPasswordForm{
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm_password"),
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.renderPage(w, r, http.StatusBadRequest, "pages/reset-password.html", "Reset password", resetPasswordPageData{Form: form, Errors: errs})
		return
	}

	if err := h.service.ResetPassword(r.Context(), userID, form.Password); err != nil {
		h.logger.Warn("reset password", slog.Any("error", err))
		h.renderPage(w, r, http.StatusBadRequest, "pages/reset-password.html", "Reset password", resetPasswordPageData{
			Form:   form,
			Errors: map[string]string{"general": "Could not update the password."},
		})
		return
	}
	sess.Delete("recovery_user")
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Password updated. Sign in with the new one."})
	http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
}

func confirmFailureURL() string {
	v := url.Values{}
	v.Set("error", "access_denied")
	v.Set("error_code", "otp_expired")
	return "/reset-password?" + v.Encode()
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	return errs
}

func (h *Handler) renderSignIn(w http.ResponseWriter, r *http.Request, status int, data signInPageData) {
	h.renderPage(w, r, status, "pages/sign-in.html", "Sign in", data)
}

func (h *Handler) renderSignUp(w http.ResponseWriter, r *http.Request, status int, data signUpPageData) {
	h.renderPage(w, r, status, "pages/sign-up.html", "Create account", data)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
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
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
