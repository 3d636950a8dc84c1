package domain

import (
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentBankTransfer  PaymentMethod = "Bank Transfer"
	PaymentCheque        PaymentMethod = "Cheque"
	PaymentOnlinePayment PaymentMethod = "Online Payment"
	PaymentOther         PaymentMethod = "Other"
)

var PaymentMethods = []PaymentMethod{
	PaymentCash, PaymentBankTransfer, PaymentCheque, PaymentOnlinePayment, PaymentOther,
}

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

var ClassCategories = []string{
	"Nursery", "KGI", "KGII",
	"Class 1", "Class 2", "Class 3", "Class 4", "Class 5",
	"Class 6", "Class 7", "Class 8", "Class 9", "Class 10 (Matric)",
}

func IsClassCategory(s string) bool {
	return classCategoryRank(s) >= 0
}

// classCategoryRank orders categories from Nursery up; unknown categories rank -1.
func classCategoryRank(s string) int {
	for i, c := range ClassCategories {
		if c == s {
			return i
		}
	}
	return -1
}

// CompareClassCategory orders known categories by grade and unknown ones last, alphabetically.
func CompareClassCategory(a, b string) int {
	ra, rb := classCategoryRank(a), classCategoryRank(b)
	switch {
	case ra >= 0 && rb >= 0:
		return ra - rb
	case ra >= 0:
		return -1
	case rb >= 0:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type FeeType string

const (
	FeeMonthly   FeeType = "Monthly Fee"
	FeeAnnual    FeeType = "Annual Charges"
	FeeAdmission FeeType = "Admission Fee"
)

func (t FeeType) Valid() bool {
	return t == FeeMonthly || t == FeeAnnual || t == FeeAdmission
}

// Sentinel returns the Month value stored for one-time fees, or "" for monthly tuition.
func (t FeeType) Sentinel() string {
	switch t {
	case FeeAnnual:
		return MonthAnnual
	case FeeAdmission:
		return MonthAdmission
	}
	return ""
}

// FeeRecord is one persisted payment. Records are never modified after append.
type FeeRecord struct {
	ID             Identity      `json:"id"`
	StudentName    string        `json:"student_name"`
	ClassCategory  string        `json:"class_category"`
	ClassSection   string        `json:"class_section"`
	Month          string        `json:"month"`
	MonthlyFee     int64         `json:"monthly_fee"`
	AnnualCharges  int64         `json:"annual_charges"`
	AdmissionFee   int64         `json:"admission_fee"`
	ReceivedAmount int64         `json:"received_amount"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Date           time.Time     `json:"date"`
	Signature      string        `json:"signature"`
	EntryTimestamp time.Time     `json:"entry_timestamp"`
	AcademicYear   string        `json:"academic_year"`
}

// FeeType infers the fee type from whichever amount is non-zero.
func (r FeeRecord) FeeType() FeeType {
	switch {
	case r.AnnualCharges > 0:
		return FeeAnnual
	case r.AdmissionFee > 0:
		return FeeAdmission
	}
	return FeeMonthly
}

// Validate checks the write-time invariants of a record.
func (r FeeRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidFeeRecord)
	}
	if r.MonthlyFee < 0 || r.AnnualCharges < 0 || r.AdmissionFee < 0 || r.ReceivedAmount < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidFeeRecord)
	}

	nonZero := 0
	for _, v := range []int64{r.MonthlyFee, r.AnnualCharges, r.AdmissionFee} {
		if v > 0 {
			nonZero++
		}
	}
	if nonZero != 1 {
		return fmt.Errorf("%w: exactly one of monthly fee, annual charges and admission fee must be set", ErrInvalidFeeRecord)
	}

	switch r.FeeType() {
	case FeeMonthly:
		if !IsCalendarMonth(r.Month) {
			return fmt.Errorf("%w: month %q is not a calendar month", ErrInvalidFeeRecord, r.Month)
		}
	case FeeAnnual:
		if r.Month != MonthAnnual {
			return fmt.Errorf("%w: annual charges must use month %s", ErrInvalidFeeRecord, MonthAnnual)
		}
	case FeeAdmission:
		if r.Month != MonthAdmission {
			return fmt.Errorf("%w: admission fee must use month %s", ErrInvalidFeeRecord, MonthAdmission)
		}
	}

	if !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidFeeRecord, r.PaymentMethod)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidFeeRecord)
	}
	return nil
}
