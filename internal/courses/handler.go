package courses

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soliel-ai/soliel/internal/authz"
	"github.com/soliel-ai/soliel/internal/billing"
	"github.com/soliel-ai/soliel/internal/shared"
	"github.com/soliel-ai/soliel/internal/view"
)

// PDFRenderer converts HTML into a PDF document, normally the
// Gotenberg client.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler wires HTTP endpoints for courses and dashboards.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	pdf         PDFRenderer
}

// NewHandler constructs a Handler instance. pdf may be nil; the
// certificate route then responds 503.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFRenderer) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		pdf:         pdf,
	}
}

// MountPublicRoutes registers the unauthenticated catalogue.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/courses", h.showCatalogue)
}

// MountStudentRoutes registers student pages. The caller guards them.
func (h *Handler) MountStudentRoutes(r chi.Router) {
	r.Get("/student-dashboard", h.showStudentDashboard)
	r.Post("/courses/{courseID}/enroll", h.handleEnroll)
	r.Post("/courses/{courseID}/progress", h.handleProgress)
	r.Get("/certificates/{courseID}", h.showCertificate)
}

// MountInstructorRoutes registers instructor pages.
func (h *Handler) MountInstructorRoutes(r chi.Router) {
	r.Get("/instructor-dashboard", h.showInstructorDashboard)
}

type catalogueData struct {
	Courses []catalogueCourse
}

type catalogueCourse struct {
	Course
	Price string
}

func (h *Handler) showCatalogue(w http.ResponseWriter, r *http.Request) {
	published, err := h.service.Published(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data := catalogueData{Courses: make([]catalogueCourse, 0, len(published))}
	for _, c := range published {
		data.Courses = append(data.Courses, catalogueCourse{
			Course: c,
			Price:  billing.FormatPrice(c.PriceCents, c.Currency),
		})
	}
	h.render(w, r, "pages/courses.html", "Courses", data)
}

type studentDashboardData struct {
	Enrollments []EnrollmentWithCourse
}

func (h *Handler) showStudentDashboard(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	enrollments, err := h.service.StudentDashboard(r.Context(), principal.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/student-dashboard.html", "My learning", studentDashboardData{Enrollments: enrollments})
}

type instructorDashboardData struct {
	Courses []Course
}

func (h *Handler) showInstructorDashboard(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	own, err := h.service.InstructorDashboard(r.Context(), principal.ID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/instructor-dashboard.html", "My courses", instructorDashboardData{Courses: own})
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.Enroll(r.Context(), principal.ID, courseID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.renderError(w, r, err)
		return
	}
	h.flash(r, "success", "Enrolled. Happy learning!")
	http.Redirect(w, r, "/student-dashboard", http.StatusSeeOther)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	percent, err := strconv.ParseInt(r.PostFormValue("percent"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if _, err := h.service.ReportProgress(r.Context(), principal.ID, courseID, percent); err != nil {
		if errors.Is(err, ErrNotEnrolled) {
			http.NotFound(w, r)
			return
		}
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/student-dashboard", http.StatusSeeOther)
}

type certificateData struct {
	StudentEmail string
	CourseTitle  string
	CompletedAt  string
}

func (h *Handler) showCertificate(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	completed, err := h.service.CompletedEnrollment(r.Context(), principal.ID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotEnrolled) || errors.Is(err, ErrNotCompleted) {
			h.flash(r, "error", "Finish the course to download its certificate.")
			http.Redirect(w, r, "/student-dashboard", http.StatusSeeOther)
			return
		}
		h.renderError(w, r, err)
		return
	}

	html, err := h.templates.RenderHTML("pages/certificate.html", view.TemplateData{
		Title: "Certificate",
		Data: certificateData{
			StudentEmail: principal.Email,
			CourseTitle:  completed.Course.Title,
			CompletedAt:  completed.CompletedAt.Format("2 January 2006"),
		},
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render certificate pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="certificate.pdf"`)
	_, _ = w.Write(pdf)
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
	h.logger.Error("courses page", slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
