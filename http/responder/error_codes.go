package responder

import (
	"github.com/leeforge/icons/errors"
)

const (
	// 4xxx client side
	ErrCodeBadRequest       = 4000
	ErrCodeValidationFailed = 4002
	ErrCodeNotFound         = 4003
	ErrCodeForbidden        = 4005
	ErrCodeNotApplicable    = 4010
	ErrCodeNoSource         = 4011
	ErrCodeProcessing       = 4012

	// 5xxx server side
	ErrCodeInternalServer = 5000
	ErrCodeStorageService = 5004
)

var errorMessages = map[int]string{
	ErrCodeBadRequest:       "Bad Request",
	ErrCodeValidationFailed: "Validation Failed",
	ErrCodeNotFound:         "Resource Not Found",
	ErrCodeForbidden:        "Forbidden",
	ErrCodeNotApplicable:    "Not Applicable",
	ErrCodeNoSource:         "No Source Image",
	ErrCodeProcessing:       "Image Processing Failed",
	ErrCodeInternalServer:   "Internal Server Error",
	ErrCodeStorageService:   "Storage Service Error",
}

var typeCodes = map[errors.ErrorType]int{
	errors.ErrorTypeInvalid:       ErrCodeValidationFailed,
	errors.ErrorTypeNotApplicable: ErrCodeNotApplicable,
	errors.ErrorTypeNoSource:      ErrCodeNoSource,
	errors.ErrorTypeNotFound:      ErrCodeNotFound,
	errors.ErrorTypeForbidden:     ErrCodeForbidden,
	errors.ErrorTypeProcessing:    ErrCodeProcessing,
	errors.ErrorTypeStorage:       ErrCodeStorageService,
	errors.ErrorTypeInternal:      ErrCodeInternalServer,
}

// GetErrorMessage returns the default message for an error code
func GetErrorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown Error"
}

// CodeFor maps an application error type onto a response code.
func CodeFor(t errors.ErrorType) int {
	if code, ok := typeCodes[t]; ok {
		return code
	}
	return ErrCodeInternalServer
}

func NewError(code int, message string) Error {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return Error{Code: code, Message: message}
}
