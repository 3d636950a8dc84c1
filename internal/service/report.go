package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fee-ledger/internal/domain"
)

type ReportService struct {
	records FeeRecordRepository
}

func NewReportService(records FeeRecordRepository) *ReportService {
	return &ReportService{records: records}
}

// RecordsFilter narrows a record listing. Empty fields match everything.
type RecordsFilter struct {
	AcademicYear  string `json:"academic_year,omitempty"`
	ClassCategory string `json:"class_category,omitempty"`
	Month         string `json:"month,omitempty"`
}

func (f RecordsFilter) match(rec domain.FeeRecord) bool {
	if f.AcademicYear != "" && rec.AcademicYear != f.AcademicYear {
		return false
	}
	if f.ClassCategory != "" && rec.ClassCategory != f.ClassCategory {
		return false
	}
	if f.Month != "" && rec.Month != strings.ToUpper(f.Month) {
		return false
	}
	return true
}

// Records lists ledger records in file order.
func (s *ReportService) Records(ctx context.Context, f RecordsFilter) ([]domain.FeeRecord, error) {
	all, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.FeeRecord{}
	for _, rec := range all {
		if f.match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type StudentMonthStatus struct {
	ID            domain.Identity `json:"id"`
	StudentName   string          `json:"student_name"`
	ClassCategory string          `json:"class_category"`
	ClassSection  string          `json:"class_section,omitempty"`
	Amount        int64           `json:"amount,omitempty"`
	PaidOn        string          `json:"paid_on,omitempty"`
}

type MonthReport struct {
	Month        string               `json:"month"`
	AcademicYear string               `json:"academic_year"`
	Paid         []StudentMonthStatus `json:"paid"`
	Unpaid       []StudentMonthStatus `json:"unpaid"`
}

// MonthStatus splits every student known to the ledger into those who paid
// the monthly fee for month in academicYear and those who did not.
func (s *ReportService) MonthStatus(ctx context.Context, month, academicYear string) (MonthReport, error) {
	month = strings.ToUpper(strings.TrimSpace(month))
	if !domain.IsCalendarMonth(month) {
		return MonthReport{}, fmt.Errorf("%w: %q is not a month", domain.ErrInvalidFeeRecord, month)
	}
	if !domain.ValidAcademicYear(academicYear) {
		return MonthReport{}, fmt.Errorf("%w: invalid academic year %q", domain.ErrInvalidFeeRecord, academicYear)
	}

	all, err := s.records.LoadAll(ctx)
	if err != nil {
		return MonthReport{}, err
	}

	roster := make(map[domain.Identity]*StudentMonthStatus)
	paid := make(map[domain.Identity]bool)
	for _, rec := range all {
		st, ok := roster[rec.ID]
		if !ok {
			st = &StudentMonthStatus{ID: rec.ID}
			roster[rec.ID] = st
		}
		st.StudentName, st.ClassCategory = rec.StudentName, rec.ClassCategory
		if rec.ClassSection != "" {
			st.ClassSection = rec.ClassSection
		}

		if rec.MonthlyFee > 0 && rec.Month == month && rec.AcademicYear == academicYear && !paid[rec.ID] {
			paid[rec.ID] = true
			st.Amount = rec.ReceivedAmount
			st.PaidOn = rec.Date.Format(time.DateOnly)
		}
	}

	report := MonthReport{
		Month:        month,
		AcademicYear: academicYear,
		Paid:         []StudentMonthStatus{},
		Unpaid:       []StudentMonthStatus{},
	}
	for id, st := range roster {
		if paid[id] {
			report.Paid = append(report.Paid, *st)
		} else {
			report.Unpaid = append(report.Unpaid, *st)
		}
	}
	sortStudents(report.Paid)
	sortStudents(report.Unpaid)
	return report, nil
}

func sortStudents(s []StudentMonthStatus) {
	sort.Slice(s, func(i, j int) bool {
		if c := domain.CompareClassCategory(s[i].ClassCategory, s[j].ClassCategory); c != 0 {
			return c < 0
		}
		if s[i].StudentName != s[j].StudentName {
			return s[i].StudentName < s[j].StudentName
		}
		return s[i].ID < s[j].ID
	})
}

type YearlyMonth struct {
	Month         string               `json:"month"`
	Paid          bool                 `json:"paid"`
	Amount        int64                `json:"amount"`
	Date          string               `json:"date,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"payment_method,omitempty"`
}

type YearlyReport struct {
	ID              domain.Identity `json:"id"`
	StudentName     string          `json:"student_name,omitempty"`
	ClassCategory   string          `json:"class_category,omitempty"`
	AcademicYear    string          `json:"academic_year"`
	Months          []YearlyMonth   `json:"months"`
	AnnualPaid      bool            `json:"annual_paid"`
	AnnualAmount    int64           `json:"annual_amount"`
	AdmissionPaid   bool            `json:"admission_paid"`
	AdmissionAmount int64           `json:"admission_amount"`
	TotalReceived   int64           `json:"total_received"`
}

// YearlyReport is the month-by-month grid of one student for an academic year.
func (s *ReportService) YearlyReport(ctx context.Context, id domain.Identity, academicYear string) (YearlyReport, error) {
	if !domain.ValidAcademicYear(academicYear) {
		return YearlyReport{}, fmt.Errorf("%w: invalid academic year %q", domain.ErrInvalidFeeRecord, academicYear)
	}

	records, err := s.records.QueryByIdentityAndYear(ctx, id, academicYear)
	if err != nil {
		return YearlyReport{}, err
	}

	rep := YearlyReport{ID: id, AcademicYear: academicYear}
	byMonth := make(map[string]domain.FeeRecord)
	for _, rec := range records {
		rep.StudentName, rep.ClassCategory = rec.StudentName, rec.ClassCategory
		rep.TotalReceived += rec.ReceivedAmount
		rep.AnnualAmount += rec.AnnualCharges
		rep.AdmissionAmount += rec.AdmissionFee
		if rec.MonthlyFee > 0 {
			if _, ok := byMonth[rec.Month]; !ok {
				byMonth[rec.Month] = rec
			}
		}
	}
	rep.AnnualPaid = rep.AnnualAmount > 0
	rep.AdmissionPaid = rep.AdmissionAmount > 0

	for _, m := range domain.AcademicMonths() {
		row := YearlyMonth{Month: m}
		if rec, ok := byMonth[m]; ok {
			row.Paid = true
			row.Amount = rec.MonthlyFee
			row.Date = rec.Date.Format(time.DateOnly)
			row.PaymentMethod = rec.PaymentMethod
		}
		rep.Months = append(rep.Months, row)
	}
	return rep, nil
}
