package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fee-ledger/internal/domain"
)

// Actor is the authenticated user a request is made on behalf of.
type Actor struct {
	Username string
	IsAdmin  bool
}

type FeeNotifier interface {
	NotifyFeesRecorded(ctx context.Context, username, studentID string, months []string, total int64) error
}

// EntryRequest is one submission of the fee entry form. ReceivedAmount is
// what was actually collected for an annual or admission fee; nil means the
// full charge. Monthly fees always receive the monthly fee.
type EntryRequest struct {
	StudentName    string
	ClassCategory  string
	ClassSection   string
	FeeType        domain.FeeType
	Months         []string // monthly fees only
	Amount         *int64   // nil uses the student's schedule
	ReceivedAmount *int64
	PaymentMethod  domain.PaymentMethod
	Date           time.Time
	Signature      string
}

type EntryResult struct {
	ID           domain.Identity    `json:"id"`
	AcademicYear string             `json:"academic_year"`
	Records      []domain.FeeRecord `json:"records"`
	Total        int64              `json:"total"`
}

// EntryService records fee payments. The paid/unpaid check and the append are
// done under a per-student lock so two submissions in this process cannot
// both pass the check.
type EntryService struct {
	records   FeeRecordRepository
	status    *StatusService
	schedules *ScheduleService
	notifier  FeeNotifier
	locks     *keyedMutex
	now       func() time.Time
}

func NewEntryService(records FeeRecordRepository, status *StatusService, schedules *ScheduleService, notifier FeeNotifier) *EntryService {
	return &EntryService{
		records:   records,
		status:    status,
		schedules: schedules,
		notifier:  notifier,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

func invalidEntry(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidFeeRecord, fmt.Sprintf(format, args...))
}

func (s *EntryService) Submit(ctx context.Context, actor Actor, req EntryRequest) (EntryResult, error) {
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.ClassCategory = strings.TrimSpace(req.ClassCategory)
	req.ClassSection = strings.TrimSpace(req.ClassSection)
	req.Signature = strings.TrimSpace(req.Signature)

	switch {
	case req.StudentName == "":
		return EntryResult{}, invalidEntry("student name is required")
	case req.ClassCategory == "":
		return EntryResult{}, invalidEntry("class category is required")
	case req.Signature == "":
		return EntryResult{}, invalidEntry("signature is required")
	}
	if !domain.IsClassCategory(req.ClassCategory) {
		return EntryResult{}, invalidEntry("unknown class category %q", req.ClassCategory)
	}
	if !req.PaymentMethod.Valid() {
		return EntryResult{}, invalidEntry("unknown payment method %q", req.PaymentMethod)
	}
	if !req.FeeType.Valid() {
		return EntryResult{}, invalidEntry("unknown fee type %q", req.FeeType)
	}
	if req.ReceivedAmount != nil && *req.ReceivedAmount < 0 {
		return EntryResult{}, invalidEntry("received amount must not be negative")
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.Local)

	id := domain.DeriveIdentity(req.StudentName, req.ClassCategory)
	year := domain.AcademicYearFor(date)

	amount, err := s.resolveAmount(ctx, actor, id, req)
	if err != nil {
		return EntryResult{}, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	base := domain.FeeRecord{
		ID:            id,
		StudentName:   req.StudentName,
		ClassCategory: req.ClassCategory,
		ClassSection:  req.ClassSection,
		PaymentMethod: req.PaymentMethod,
		Date:          date,
		Signature:     req.Signature,
		AcademicYear:  year,
	}

	var records []domain.FeeRecord
	switch req.FeeType {
	case domain.FeeMonthly:
		months, err := s.checkMonths(ctx, id, req.Months)
		if err != nil {
			return EntryResult{}, err
		}
		for _, m := range months {
			rec := base
			rec.Month = m
			rec.MonthlyFee = amount
			rec.ReceivedAmount = amount
			records = append(records, rec)
		}

	case domain.FeeAnnual, domain.FeeAdmission:
		annualPaid, admissionPaid, err := s.status.AnnualAndAdmissionPaid(ctx, id, year)
		if err != nil {
			return EntryResult{}, err
		}
		if (req.FeeType == domain.FeeAnnual && annualPaid) || (req.FeeType == domain.FeeAdmission && admissionPaid) {
			return EntryResult{}, &domain.OneTimeFeeError{FeeType: req.FeeType, AcademicYear: year}
		}
		rec := base
		rec.Month = req.FeeType.Sentinel()
		rec.ReceivedAmount = amount
		if req.ReceivedAmount != nil {
			rec.ReceivedAmount = *req.ReceivedAmount
		}
		if req.FeeType == domain.FeeAnnual {
			rec.AnnualCharges = amount
		} else {
			rec.AdmissionFee = amount
		}
		records = append(records, rec)
	}

	if err := s.records.AppendBatch(ctx, records); err != nil {
		return EntryResult{}, err
	}

	res := EntryResult{ID: id, AcademicYear: year, Records: records}
	months := make([]string, 0, len(records))
	for _, rec := range records {
		res.Total += rec.ReceivedAmount
		months = append(months, rec.Month)
	}

	log.Printf("[FEES] %s recorded %s for %s (%s): %s, %s",
		actor.Username, req.FeeType, id, req.StudentName, strings.Join(months, ","), domain.FormatCurrency(res.Total))

	if s.notifier != nil {
		if err := s.notifier.NotifyFeesRecorded(ctx, actor.Username, id.String(), months, res.Total); err != nil {
			log.Printf("[FEES] notify %s: %v", actor.Username, err)
		}
	}
	return res, nil
}

// resolveAmount picks the amount to charge. Non-admins may only supply an
// amount for students without a stored schedule.
func (s *EntryService) resolveAmount(ctx context.Context, actor Actor, id domain.Identity, req EntryRequest) (int64, error) {
	schedule, predefined, err := s.schedules.Effective(ctx, id)
	if err != nil {
		return 0, err
	}
	amount := schedule.Amount(req.FeeType)

	if req.Amount != nil {
		if predefined && !actor.IsAdmin && *req.Amount != amount {
			return 0, fmt.Errorf("%w: %s is fixed at %s for this student", domain.ErrForbidden, req.FeeType, domain.FormatCurrency(amount))
		}
		amount = *req.Amount
	}
	if amount <= 0 {
		return 0, invalidEntry("amount must be positive")
	}
	return amount, nil
}

// checkMonths normalises the requested months and rejects any that are already paid.
func (s *EntryService) checkMonths(ctx context.Context, id domain.Identity, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, invalidEntry("select at least one month")
	}

	unpaid, err := s.status.UnpaidMonths(ctx, id)
	if err != nil {
		return nil, err
	}
	open := make(map[string]bool, len(unpaid))
	for _, m := range unpaid {
		open[m] = true
	}

	seen := make(map[string]bool, len(requested))
	var months []string
	var paid []string
	for _, m := range requested {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !domain.IsCalendarMonth(m) {
			return nil, invalidEntry("%q is not a month", m)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		if !open[m] {
			paid = append(paid, m)
			continue
		}
		months = append(months, m)
	}
	if len(paid) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMonthAlreadyPaid, strings.Join(paid, ", "))
	}
	return months, nil
}
