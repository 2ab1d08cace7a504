package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/sessionkeeper/internal/apperrors"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

var validate = validator.New()

func init() {
	configureValidator(validate)
}

type Struct any

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Hint    string            `json:"hint,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HTTP status for every error of the taxonomy
// Codes not listed here are rendered as 500
var statusByCode = map[string]int{
	apperrors.ErrInvalidCredentials.Code:     http.StatusUnauthorized,
	apperrors.ErrPrincipalNotFound.Code:      http.StatusUnauthorized,
	apperrors.ErrPrincipalInactive.Code:      http.StatusForbidden,
	apperrors.ErrPrincipalInvalid.Code:       http.StatusUnauthorized,
	apperrors.ErrPrincipalAlreadyExists.Code: http.StatusConflict,
	apperrors.ErrEmptyPassword.Code:          http.StatusBadRequest,

	apperrors.ErrNoToken.Code:             http.StatusUnauthorized,
	apperrors.ErrEmptyToken.Code:          http.StatusUnauthorized,
	apperrors.ErrTokenExpired.Code:        http.StatusUnauthorized,
	apperrors.ErrTokenMalformed.Code:      http.StatusUnauthorized,
	apperrors.ErrTokenNotYetValid.Code:    http.StatusUnauthorized,
	apperrors.ErrInvalidTokenPayload.Code: http.StatusUnauthorized,

	apperrors.ErrRenewalTokenNotFound.Code:  http.StatusUnauthorized,
	apperrors.ErrRenewalTokenInvalid.Code:   http.StatusUnauthorized,
	apperrors.ErrRenewalTokenMalformed.Code: http.StatusUnauthorized,

	apperrors.ErrSessionNotFound.Code: http.StatusNotFound,
	apperrors.ErrForbidden.Code:       http.StatusForbidden,
}

// Status code the error is rendered with
func StatusOf(err error) int {
	if status, ok := statusByCode[apperrors.Describe(err).Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, error string, code int) {
	response := ErrorResponse{
		Error:   ServiceErrorType,
		Message: error,
	}

	jsonWithStatus(w, response, code)
}

// Render error of the apperrors taxonomy with its code and hint
// Unknown errors are rendered as internal error without details
func AppError(w http.ResponseWriter, err error) {
	appErr := apperrors.Describe(err)

	response := ErrorResponse{
		Error:   ServiceErrorType,
		Code:    appErr.Code,
		Message: appErr.Error(),
		Hint:    appErr.Hint,
	}

	jsonWithStatus(w, response, StatusOf(err))
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   DecodingErrorType,
		Message: "",
	}

	// Try to provide more specific error message based on error type
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Value is not a valid email"
		case "nonblank":
			message = "Value must not be blank"
		default:
			message = "Invalid value"
		}

		response.Fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return value, err
		}
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// DecodeLenient decodes JSON request body into type T without validation.
// Empty or broken body gives zero T, nothing is written to the response.
func DecodeLenient[T Struct](r *http.Request) T {
	var value T
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		var zero T
		return zero
	}
	return value
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
