package rest

import (
	"net/http"
	"strings"

	"fee-ledger/internal/domain"
)

func (h *Handler) monthReport(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = domain.MonthLabel(h.now().Month())
	}
	year, ok := academicYearParam(w, r, domain.AcademicYearFor(h.now()))
	if !ok {
		return
	}

	rep, err := h.Reports.MonthStatus(r.Context(), month, year)
	if err != nil {
		writeError(w, "monthReport", err)
		return
	}
	Success(w, "", rep)
}

func (h *Handler) yearlyReport(w http.ResponseWriter, r *http.Request) {
	id, ok := studentID(w, r)
	if !ok {
		return
	}
	year, ok := academicYearParam(w, r, domain.AcademicYearFor(h.now()))
	if !ok {
		return
	}

	rep, err := h.Reports.YearlyReport(r.Context(), id, year)
	if err != nil {
		writeError(w, "yearlyReport", err)
		return
	}
	Success(w, "", rep)
}
