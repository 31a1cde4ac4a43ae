package responder

import (
	"context"
	"net/http"

	"github.com/leeforge/icons/errors"
	"github.com/leeforge/icons/json"
	"github.com/leeforge/icons/logging"
)

// Write encodes resp as JSON with the given status. The trace id from the
// request context is filled in when the caller left it empty.
func Write(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	if resp.Meta.TraceId == "" && r != nil {
		resp.Meta.TraceId = logging.GetTraceID(r.Context())
	}

	body, err := json.Marshal(&resp)
	if err != nil {
		logging.FromContext(requestContext(r)).WithError(err).Error("responder.marshal")
		http.Error(w, GetErrorMessage(ErrCodeInternalServer), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func OK(w http.ResponseWriter, r *http.Request, data any) {
	Write(w, r, http.StatusOK, Response{Data: data})
}

// MultiStatus reports a result where some parts succeeded and some did not.
func MultiStatus(w http.ResponseWriter, r *http.Request, data any) {
	Write(w, r, http.StatusMultiStatus, Response{Data: data})
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, NewError(ErrCodeBadRequest, message))
}

func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusForbidden, NewError(ErrCodeForbidden, message))
}

func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeNotFound, message))
}

func ValidationError(w http.ResponseWriter, r *http.Request, fields []FieldError) {
	e := NewError(ErrCodeValidationFailed, "")
	e.Details = fields
	WriteError(w, r, http.StatusBadRequest, e)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, e Error) {
	Write(w, r, status, Response{Error: &e})
}

// FromError writes err using the status and type carried by an *errors.AppError.
// Errors of any other kind become a 500 without leaking their message.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.FromError(err)
	if appErr == nil {
		OK(w, r, nil)
		return
	}

	status := errors.StatusOf(err)
	e := Error{
		Code:    CodeFor(appErr.Type),
		Type:    string(appErr.Type),
		Message: appErr.Message,
	}
	if len(appErr.Details) > 0 {
		e.Details = appErr.Details
	}
	if appErr.Type == errors.ErrorTypeUnknown || status >= http.StatusInternalServerError {
		logging.FromContext(requestContext(r)).WithError(err).Error("request failed")
		if appErr.Type == errors.ErrorTypeUnknown {
			e.Message = GetErrorMessage(ErrCodeInternalServer)
		}
	}
	WriteError(w, r, status, e)
}

func requestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}
