package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fee-ledger/internal/domain"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func ErrorForbidden(w http.ResponseWriter, message string) {
	Error(w, message, 403, http.StatusForbidden)
}

func ErrorConflict(w http.ResponseWriter, message string) {
	Error(w, message, 409, http.StatusConflict)
}

// ErrorValidation is a 400 whose data lists the offending fields.
func ErrorValidation(w http.ResponseWriter, verr *ValidationError) {
	var data interface{}
	if len(verr.Fields) > 0 {
		data = verr.Fields
	}
	Response(w, verr.Message, data, 400, "error", http.StatusBadRequest)
}

// writeError maps a service error onto the response envelope.
func writeError(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	var oneTime *domain.OneTimeFeeError
	switch {
	case errors.As(err, &verr):
		ErrorValidation(w, verr)
	case errors.As(err, &oneTime):
		ErrorConflict(w, oneTime.Error())
	case errors.Is(err, domain.ErrInvalidFeeRecord),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidAccount):
		ErrorBadRequest(w, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionNotFound):
		ErrorUnauthorized(w, err.Error())
	case errors.Is(err, domain.ErrTrialExpired),
		errors.Is(err, domain.ErrForbidden):
		ErrorForbidden(w, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrExportNotFound):
		ErrorNotFound(w, err.Error())
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrUsernameExists),
		errors.Is(err, domain.ErrMonthAlreadyPaid),
		errors.Is(err, domain.ErrDuplicateOneTimeFee):
		ErrorConflict(w, err.Error())
	default:
		log.Printf("[HTTP] %s error: %v", op, err)
		ErrorInternal(w, "internal error")
	}
}
