package rest

import (
	"net/http"
	"strings"
	"time"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/service"
)

func (h *Handler) enterFee(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	var req FeeEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "enterFee", err)
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.Date, time.Local)
		if err != nil {
			ErrorBadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	res, err := h.Entries.Submit(r.Context(), act, service.EntryRequest{
		StudentName:    req.StudentName,
		ClassCategory:  req.ClassCategory,
		ClassSection:   req.ClassSection,
		FeeType:        domain.FeeType(req.FeeType),
		Months:         req.Months,
		Amount:         req.Amount,
		ReceivedAmount: req.ReceivedAmount,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		Date:           date,
		Signature:      req.Signature,
	})
	if err != nil {
		writeError(w, "enterFee", err)
		return
	}

	SuccessCreated(w, "Fee recorded: "+domain.FormatCurrency(res.Total), res)
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.RecordsFilter{
		AcademicYear:  strings.TrimSpace(q.Get("year")),
		ClassCategory: strings.TrimSpace(q.Get("category")),
		Month:         strings.TrimSpace(q.Get("month")),
	}
	if filter.AcademicYear != "" && !domain.ValidAcademicYear(filter.AcademicYear) {
		ErrorBadRequest(w, "year must look like 2024-2025")
		return
	}

	records, err := h.Reports.Records(r.Context(), filter)
	if err != nil {
		writeError(w, "listFees", err)
		return
	}

	var total int64
	for _, rec := range records {
		total += rec.ReceivedAmount
	}
	Success(w, "", map[string]any{
		"records": records,
		"count":   len(records),
		"total":   total,
	})
}
