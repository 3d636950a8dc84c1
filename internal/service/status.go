package service

import (
	"context"
	"sort"
	"time"

	"fee-ledger/internal/domain"
)

type FeeRecordRepository interface {
	AppendBatch(ctx context.Context, records []domain.FeeRecord) error
	LoadAll(ctx context.Context) ([]domain.FeeRecord, error)
	QueryByIdentity(ctx context.Context, id domain.Identity) ([]domain.FeeRecord, error)
	QueryByIdentityAndYear(ctx context.Context, id domain.Identity, academicYear string) ([]domain.FeeRecord, error)
}

// StatusService derives payment status from the fee ledger. Nothing is cached:
// every call reads the store.
type StatusService struct {
	records FeeRecordRepository
	now     func() time.Time
}

func NewStatusService(records FeeRecordRepository) *StatusService {
	return &StatusService{records: records, now: time.Now}
}

// UnpaidMonths lists, in academic order, the months for which the student has
// no monthly fee record in any academic year.
func (s *StatusService) UnpaidMonths(ctx context.Context, id domain.Identity) ([]string, error) {
	records, err := s.records.QueryByIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	return unpaidMonths(records), nil
}

func unpaidMonths(records []domain.FeeRecord) []string {
	paid := make(map[string]bool)
	for _, rec := range records {
		if rec.MonthlyFee > 0 {
			paid[rec.Month] = true
		}
	}

	out := []string{}
	for _, m := range domain.AcademicMonths() {
		if !paid[m] {
			out = append(out, m)
		}
	}
	return out
}

// AnnualAndAdmissionPaid reports whether annual charges and the admission fee
// have been recorded for the student in academicYear.
func (s *StatusService) AnnualAndAdmissionPaid(ctx context.Context, id domain.Identity, academicYear string) (annual, admission bool, err error) {
	records, err := s.records.QueryByIdentityAndYear(ctx, id, academicYear)
	if err != nil {
		return false, false, err
	}
	annual, admission = oneTimeFeesPaid(records)
	return annual, admission, nil
}

func oneTimeFeesPaid(records []domain.FeeRecord) (annual, admission bool) {
	var annualSum, admissionSum int64
	for _, rec := range records {
		annualSum += rec.AnnualCharges
		admissionSum += rec.AdmissionFee
	}
	return annualSum > 0, admissionSum > 0
}

type PaidMonth struct {
	Month  string `json:"month"`
	Amount int64  `json:"amount"`
}

type HistoryTotals struct {
	Monthly   int64 `json:"monthly"`
	Annual    int64 `json:"annual"`
	Admission int64 `json:"admission"`
	Received  int64 `json:"received"`
}

// StudentHistory is the payment history of one student.
type StudentHistory struct {
	ID            domain.Identity    `json:"id"`
	StudentName   string             `json:"student_name,omitempty"`
	ClassCategory string             `json:"class_category,omitempty"`
	AcademicYear  string             `json:"academic_year"`
	Records       []domain.FeeRecord `json:"records"`
	Totals        HistoryTotals      `json:"totals"`
	PaidMonths    []PaidMonth        `json:"paid_months"`
	UnpaidMonths  []string           `json:"unpaid_months"`
	AnnualPaid    bool               `json:"annual_paid"`
	AdmissionPaid bool               `json:"admission_paid"`
}

// History returns every record of the student, newest first. When
// academicYear is empty the records of all years are included and the
// one-time fee flags refer to the current academic year.
func (s *StatusService) History(ctx context.Context, id domain.Identity, academicYear string) (StudentHistory, error) {
	all, err := s.records.QueryByIdentity(ctx, id)
	if err != nil {
		return StudentHistory{}, err
	}

	scoped := all
	flagYear := academicYear
	if academicYear != "" {
		scoped = filterByYear(all, academicYear)
	} else {
		flagYear = domain.AcademicYearFor(s.now())
	}

	h := StudentHistory{
		ID:           id,
		AcademicYear: flagYear,
		Records:      make([]domain.FeeRecord, len(scoped)),
		PaidMonths:   []PaidMonth{},
		UnpaidMonths: unpaidMonths(all),
	}
	copy(h.Records, scoped)
	sort.SliceStable(h.Records, func(i, j int) bool {
		a, b := h.Records[i], h.Records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.EntryTimestamp.After(b.EntryTimestamp)
	})

	if len(all) > 0 {
		latest := all[len(all)-1]
		h.StudentName, h.ClassCategory = latest.StudentName, latest.ClassCategory
	}

	firstAmount := make(map[string]int64)
	for _, rec := range scoped {
		h.Totals.Monthly += rec.MonthlyFee
		h.Totals.Annual += rec.AnnualCharges
		h.Totals.Admission += rec.AdmissionFee
		h.Totals.Received += rec.ReceivedAmount
		if rec.MonthlyFee > 0 {
			if _, seen := firstAmount[rec.Month]; !seen {
				firstAmount[rec.Month] = rec.MonthlyFee
			}
		}
	}
	for _, m := range domain.AcademicMonths() {
		if amount, ok := firstAmount[m]; ok {
			h.PaidMonths = append(h.PaidMonths, PaidMonth{Month: m, Amount: amount})
		}
	}

	h.AnnualPaid, h.AdmissionPaid = oneTimeFeesPaid(filterByYear(all, flagYear))
	return h, nil
}

func filterByYear(records []domain.FeeRecord, academicYear string) []domain.FeeRecord {
	out := []domain.FeeRecord{}
	for _, rec := range records {
		if rec.AcademicYear == academicYear {
			out = append(out, rec)
		}
	}
	return out
}
