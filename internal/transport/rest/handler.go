package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/service"
	"fee-ledger/internal/transport/auth"
)

type AccountService interface {
	Create(ctx context.Context, username, password, email string, isAdmin bool) (domain.Account, error)
	List(ctx context.Context, actor service.Actor) ([]domain.Account, error)
	SetAdmin(ctx context.Context, actor service.Actor, username string, isAdmin bool) error
}

type SessionService interface {
	Login(ctx context.Context, username, password string) (domain.Session, domain.AuthResult, error)
	Logout(ctx context.Context, token string) error
}

type StatusService interface {
	UnpaidMonths(ctx context.Context, id domain.Identity) ([]string, error)
	AnnualAndAdmissionPaid(ctx context.Context, id domain.Identity, academicYear string) (annual, admission bool, err error)
	History(ctx context.Context, id domain.Identity, academicYear string) (service.StudentHistory, error)
}

type ScheduleService interface {
	Effective(ctx context.Context, id domain.Identity) (domain.FeeSchedule, bool, error)
	Set(ctx context.Context, actor service.Actor, id domain.Identity, schedule domain.FeeSchedule) error
	List(ctx context.Context) (map[domain.Identity]domain.FeeSchedule, error)
}

type EntryService interface {
	Submit(ctx context.Context, actor service.Actor, req service.EntryRequest) (service.EntryResult, error)
}

type ReportService interface {
	Records(ctx context.Context, f service.RecordsFilter) ([]domain.FeeRecord, error)
	MonthStatus(ctx context.Context, month, academicYear string) (service.MonthReport, error)
	YearlyReport(ctx context.Context, id domain.Identity, academicYear string) (service.YearlyReport, error)
}

type ExportService interface {
	StartRecordsExport(ctx context.Context, actor service.Actor, filter service.RecordsFilter) (string, error)
	StartYearlyExport(ctx context.Context, actor service.Actor, id domain.Identity, academicYear string) (string, error)
	Get(ctx context.Context, actor service.Actor, exportID string) (domain.ExportStatus, error)
	List(ctx context.Context, actor service.Actor) ([]domain.ExportStatus, error)
}

// FileStore resolves a stored export name to a path on local disk.
type FileStore interface {
	Resolve(name string) (string, error)
}

type WebSocketHub interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, username string)
}

// Services groups what the handler delegates to. Files and Hub are optional.
type Services struct {
	Accounts  AccountService
	Sessions  SessionService
	Status    StatusService
	Schedules ScheduleService
	Entries   EntryService
	Reports   ReportService
	Exports   ExportService
	Files     FileStore
	Hub       WebSocketHub
}

type Handler struct {
	Services

	allowAdminSignup bool
	now              func() time.Time
}

func NewHandler(services Services, allowAdminSignup bool) *Handler {
	return &Handler{
		Services:         services,
		allowAdminSignup: allowAdminSignup,
		now:              time.Now,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

// InitRouterWithAuth mounts the public routes and, when authMiddleware is
// set, everything that needs a session behind it.
func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/health", h.health)
	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)
	if h.Files != nil {
		r.Get("/files/{file}", h.downloadFile)
	}

	if authMiddleware == nil {
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/auth/logout", h.logout)

		r.Route("/students", func(r chi.Router) {
			r.Get("/identity", h.studentIdentity)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/unpaid-months", h.unpaidMonths)
				r.Get("/status", h.studentStatus)
				r.Get("/history", h.studentHistory)
				r.Get("/schedule", h.getSchedule)
				r.With(auth.RequireAdmin).Put("/schedule", h.setSchedule)
			})
		})

		r.With(auth.RequireAdmin).Get("/schedules", h.listSchedules)

		r.Post("/fees", h.enterFee)
		r.With(auth.RequireAdmin).Get("/fees", h.listFees)

		r.Route("/reports", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/month", h.monthReport)
			r.Get("/students/{id}/yearly", h.yearlyReport)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", h.listAccounts)
			r.Put("/{username}/admin", h.setAdmin)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/", h.listExports)
			r.Get("/{export_id}", h.getExport)
			r.With(auth.RequireAdmin).Post("/records", h.exportRecords)
			r.With(auth.RequireAdmin).Post("/students/{id}/yearly", h.exportYearly)
		})

		if h.Hub != nil {
			r.Get("/ws", h.websocket)
		}
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	Success(w, "ok", map[string]string{"time": h.now().Format(time.RFC3339)})
}

// actor reads the session placed in the context by the auth middleware.
func actor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	sess, err := auth.GetSession(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return service.Actor{}, false
	}
	return service.Actor{Username: sess.Username, IsAdmin: sess.IsAdmin}, true
}

func (h *Handler) websocket(w http.ResponseWriter, r *http.Request) {
	sess, err := auth.GetSession(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	h.Hub.HandleWebSocket(w, r, sess.Username)
}
