package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fee-ledger/internal/domain"
)

// studentID parses the {id} path parameter, writing a 400 when it is malformed.
func studentID(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, err := domain.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

// academicYearParam returns ?year=, or def when absent. A malformed year is a 400.
func academicYearParam(w http.ResponseWriter, r *http.Request, def string) (string, bool) {
	year := strings.TrimSpace(r.URL.Query().Get("year"))
	if year == "" {
		return def, true
	}
	if !domain.ValidAcademicYear(year) {
		ErrorBadRequest(w, "year must look like 2024-2025")
		return "", false
	}
	return year, true
}

func (h *Handler) studentIdentity(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if name == "" || category == "" {
		ErrorBadRequest(w, "name and category are required")
		return
	}

	Success(w, "", map[string]string{
		"id":             domain.DeriveIdentity(name, category).String(),
		"student_name":   name,
		"class_category": category,
	})
}

func (h *Handler) unpaidMonths(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	months, err := h.Status.UnpaidMonths(r.Context(), id)
	if err != nil {
		writeError(w, "unpaidMonths", err)
		return
	}
	Success(w, "", map[string]any{"id": id, "unpaid_months": months})
}

type studentStatusResponse struct {
	ID            domain.Identity `json:"id"`
	AcademicYear  string          `json:"academic_year"`
	UnpaidMonths  []string        `json:"unpaid_months"`
	AnnualPaid    bool            `json:"annual_paid"`
	AdmissionPaid bool            `json:"admission_paid"`
}

func (h *Handler) studentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}
	year, ok := academicYearParam(w, r, domain.AcademicYearFor(h.now()))
	if !ok {
		return
	}

	months, err := h.Status.UnpaidMonths(r.Context(), id)
	if err != nil {
		writeError(w, "studentStatus", err)
		return
	}
	annual, admission, err := h.Status.AnnualAndAdmissionPaid(r.Context(), id, year)
	if err != nil {
		writeError(w, "studentStatus", err)
		return
	}

	Success(w, "", studentStatusResponse{
		ID:            id,
		AcademicYear:  year,
		UnpaidMonths:  months,
		AnnualPaid:    annual,
		AdmissionPaid: admission,
	})
}

func (h *Handler) studentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}
	year, ok := academicYearParam(w, r, "")
	if !ok {
		return
	}

	hist, err := h.Status.History(r.Context(), id, year)
	if err != nil {
		writeError(w, "studentHistory", err)
		return
	}
	Success(w, "", hist)
}

type scheduleResponse struct {
	ID         domain.Identity    `json:"id"`
	Schedule   domain.FeeSchedule `json:"schedule"`
	Predefined bool               `json:"predefined"`
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	schedule, predefined, err := h.Schedules.Effective(r.Context(), id)
	if err != nil {
		writeError(w, "getSchedule", err)
		return
	}
	Success(w, "", scheduleResponse{ID: id, Schedule: schedule, Predefined: predefined})
}

func (h *Handler) setSchedule(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := studentID(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "setSchedule", err)
		return
	}

	schedule := domain.FeeSchedule{
		MonthlyFee:    req.MonthlyFee,
		AnnualCharges: req.AnnualCharges,
		AdmissionFee:  req.AdmissionFee,
	}
	if err := h.Schedules.Set(r.Context(), act, id, schedule); err != nil {
		writeError(w, "setSchedule", err)
		return
	}
	Success(w, "Fee schedule saved", scheduleResponse{ID: id, Schedule: schedule, Predefined: true})
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Schedules.List(r.Context())
	if err != nil {
		writeError(w, "listSchedules", err)
		return
	}
	Success(w, "", schedules)
}
