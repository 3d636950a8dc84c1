package rest

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/service"
)

func (h *Handler) exportRecords(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	var req RecordsExportRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, "exportRecords", err)
			return
		}
	}
	if req.AcademicYear != "" && !domain.ValidAcademicYear(req.AcademicYear) {
		ErrorBadRequest(w, "academic_year must look like 2024-2025")
		return
	}

	exportID, err := h.Exports.StartRecordsExport(r.Context(), act, service.RecordsFilter{
		AcademicYear:  req.AcademicYear,
		ClassCategory: strings.TrimSpace(req.ClassCategory),
		Month:         strings.TrimSpace(req.Month),
	})
	if err != nil {
		writeError(w, "exportRecords", err)
		return
	}

	log.Printf("[HTTP] %s started records export %s", act.Username, exportID)
	SuccessAccepted(w, "Export started", map[string]string{"export_id": exportID})
}

func (h *Handler) exportYearly(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := studentID(w, r)
	if !ok {
		return
	}
	year, ok := academicYearParam(w, r, domain.AcademicYearFor(h.now()))
	if !ok {
		return
	}

	exportID, err := h.Exports.StartYearlyExport(r.Context(), act, id, year)
	if err != nil {
		writeError(w, "exportYearly", err)
		return
	}

	log.Printf("[HTTP] %s started yearly export %s for %s", act.Username, exportID, id)
	SuccessAccepted(w, "Export started", map[string]string{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	exports, err := h.Exports.List(r.Context(), act)
	if err != nil {
		writeError(w, "listExports", err)
		return
	}
	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := exportIDParam
	if !strings.HasPrefix(exportID, "exports:") {
		exportID = "exports:" + exportIDParam
	}

	export, err := h.Exports.Get(r.Context(), act, exportID)
	if err != nil {
		writeError(w, "getExport", err)
		return
	}
	Success(w, "", export)
}
