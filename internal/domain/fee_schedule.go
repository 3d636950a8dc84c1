package domain

// Defaults applied when a student has no schedule of their own.
const (
	DefaultMonthlyFee    int64 = 2000
	DefaultAnnualCharges int64 = 5000
	DefaultAdmissionFee  int64 = 1000
)

// FeeSchedule holds per-student override amounts used as entry defaults.
type FeeSchedule struct {
	MonthlyFee    int64 `json:"monthly_fee"`
	AnnualCharges int64 `json:"annual_charges"`
	AdmissionFee  int64 `json:"admission_fee"`
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		MonthlyFee:    DefaultMonthlyFee,
		AnnualCharges: DefaultAnnualCharges,
		AdmissionFee:  DefaultAdmissionFee,
	}
}

// Amount returns the scheduled amount for a fee type.
func (s FeeSchedule) Amount(t FeeType) int64 {
	switch t {
	case FeeAnnual:
		return s.AnnualCharges
	case FeeAdmission:
		return s.AdmissionFee
	}
	return s.MonthlyFee
}
