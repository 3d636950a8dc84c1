package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"fee-ledger/internal/domain"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	gmailTag    = "gmail"
	notBlankTag = "notblank"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(gmailTag, func(fl validator.FieldLevel) bool {
		return domain.ValidEmail(strings.ToLower(strings.TrimSpace(fl.Field().String())))
	})
	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	noop := func(ut.Translator) error { return nil }
	_ = validate.RegisterTranslation(gmailTag, translator, noop, translateCustom)
	_ = validate.RegisterTranslation(notBlankTag, translator, noop, translateCustom)
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case gmailTag:
		return "must be a gmail.com address"
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	default:
		return fe.Tag()
	}
}

// ValidationError carries per-field messages back to the client.
type ValidationError struct {
	Field   string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// decodeJSON reads the request body into dst and runs struct validation on it.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ValidationError{Message: "request body is required"}
		}
		return &ValidationError{Message: "invalid JSON: " + err.Error()}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	first := verrs[0]
	return &ValidationError{
		Field:   first.Field(),
		Message: fields[first.Field()],
		Fields:  fields,
	}
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,notblank,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"required,gmail"`
	IsAdmin  bool   `json:"is_admin"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type FeeEntryRequest struct {
	StudentName    string   `json:"student_name" validate:"required,notblank"`
	ClassCategory  string   `json:"class_category" validate:"required,notblank"`
	ClassSection   string   `json:"class_section"`
	FeeType        string   `json:"fee_type" validate:"required,oneof='Monthly Fee' 'Annual Charges' 'Admission Fee'"`
	Months         []string `json:"months" validate:"required_if=FeeType 'Monthly Fee',dive,required"`
	Amount         *int64   `json:"amount" validate:"omitempty,gt=0"`
	ReceivedAmount *int64   `json:"received_amount" validate:"omitempty,gte=0"`
	PaymentMethod  string   `json:"payment_method" validate:"required,oneof=Cash 'Bank Transfer' Cheque 'Online Payment' Other"`
	Date           string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Signature      string   `json:"signature" validate:"required,notblank"`
}

type ScheduleRequest struct {
	MonthlyFee    int64 `json:"monthly_fee" validate:"gte=0"`
	AnnualCharges int64 `json:"annual_charges" validate:"gte=0"`
	AdmissionFee  int64 `json:"admission_fee" validate:"gte=0"`
}

type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

type RecordsExportRequest struct {
	AcademicYear  string `json:"academic_year" validate:"omitempty,len=9"`
	ClassCategory string `json:"class_category"`
	Month         string `json:"month"`
}
