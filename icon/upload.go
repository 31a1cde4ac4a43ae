package icon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/leeforge/icons/access"
	"github.com/leeforge/icons/entity"
	apperrors "github.com/leeforge/icons/errors"
	"github.com/leeforge/icons/http/responder"
	"github.com/leeforge/icons/logging"
	"go.uber.org/zap"
)

// ViewerHeader carries the GUID of the user making the request when no
// ViewerFunc is configured.
const ViewerHeader = "X-User-GUID"

// ViewerFunc returns the GUID of the requesting user, or 0 for anonymous.
type ViewerFunc func(r *http.Request) int64

// HeaderViewer reads ViewerHeader.
func HeaderViewer(r *http.Request) int64 {
	guid, err := strconv.ParseInt(r.Header.Get(ViewerHeader), 10, 64)
	if err != nil || guid <= 0 {
		return 0
	}
	return guid
}

// Authorizer decides whether viewer may replace the icon of target.
type Authorizer interface {
	CanEditIcon(viewer, target, owner int64) (bool, error)
}

// UploadHandler serves POST /icons/{guid}: a multipart form with the image in
// "icon" and optional x1, y1, x2, y2 crop coordinates.
type UploadHandler struct {
	generator  *Generator
	entities   entity.Store
	authorizer Authorizer
	viewer     ViewerFunc
	validate   *validator.Validate
	maxBytes   int64
	logger     logging.Logger
}

func NewUploadHandler(gen *Generator, entities entity.Store, authz Authorizer, viewer ViewerFunc, maxBytes int64, logger logging.Logger) *UploadHandler {
	if viewer == nil {
		viewer = HeaderViewer
	}
	if maxBytes <= 0 {
		maxBytes = MaxSourceBytes
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &UploadHandler{
		generator:  gen,
		entities:   entities,
		authorizer: authz,
		viewer:     viewer,
		validate:   newValidator(),
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// GenerationResponse summarises an Outcome for API clients.
type GenerationResponse struct {
	GUID     int64             `json:"guid"`
	Result   string            `json:"result"`
	IconTime int64             `json:"icontime,omitempty"`
	Written  map[string]string `json:"written,omitempty"`
	Skipped  []string          `json:"skipped,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	guid, err := strconv.ParseInt(chi.URLParam(r, "guid"), 10, 64)
	if err != nil || guid <= 0 {
		responder.BadRequest(w, r, "invalid guid")
		return
	}

	viewer := h.viewer(r)
	if viewer <= 0 {
		responder.Forbidden(w, r, "login required")
		return
	}
	ctx := context.WithValue(r.Context(), logging.ViewerKey, viewer)
	r = r.WithContext(ctx)

	e, err := h.entities.Get(ctx, guid)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			responder.NotFound(w, r, "entity not found")
			return
		}
		responder.FromError(w, r, apperrors.NewStorage("load entity", err))
		return
	}

	allowed, err := h.authorizer.CanEditIcon(viewer, e.GUID, e.OwnerGUID)
	if err != nil {
		responder.FromError(w, r, apperrors.NewInternal("authorize icon upload").WithInnerError(err))
		return
	}
	if !allowed {
		responder.Forbidden(w, r, "not allowed to edit this icon")
		return
	}

	data, coords, fields, err := h.parseForm(w, r)
	if err != nil {
		responder.FromError(w, r, err)
		return
	}
	if len(fields) > 0 {
		responder.ValidationError(w, r, fields)
		return
	}

	outcome := h.generator.Generate(ctx, e, FromBytes(data), Options{Coords: coords})
	h.logFailure(ctx, e.GUID, outcome)
	resp := summarize(e.GUID, outcome)

	switch o := outcome.(type) {
	case *Success:
		responder.OK(w, r, resp)
	case *PartialFailure:
		responder.MultiStatus(w, r, resp)
	case *Fatal:
		responder.FromError(w, r, o.Reason)
	}
}

var coordFields = []string{"x1", "y1", "x2", "y2"}

// parseForm returns the uploaded bytes and the crop rectangle, if any.
// Field-level problems are returned as FieldErrors.
func (h *UploadHandler) parseForm(w http.ResponseWriter, r *http.Request) ([]byte, *CropRect, []responder.FieldError, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		return nil, nil, nil, apperrors.NewInvalid("icon", "multipart", err.Error())
	}

	file, _, err := r.FormFile("icon")
	if err != nil {
		return nil, nil, nil, apperrors.NewNoSource("icon file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return nil, nil, nil, apperrors.NewInvalid("icon", "upload", err.Error())
	}
	if int64(len(data)) > h.maxBytes {
		return nil, nil, nil, apperrors.NewInvalid("icon", len(data), "file too large")
	}

	present := false
	for _, name := range coordFields {
		if r.FormValue(name) != "" {
			present = true
		}
	}
	if !present {
		return data, nil, nil, nil
	}

	var fields []responder.FieldError
	values := make([]int, len(coordFields))
	for i, name := range coordFields {
		v, err := strconv.Atoi(r.FormValue(name))
		if err != nil {
			fields = append(fields, responder.FieldError{Field: name, Message: "must be an integer"})
			continue
		}
		values[i] = v
	}
	if len(fields) > 0 {
		return nil, nil, fields, nil
	}

	rect := &CropRect{X1: values[0], Y1: values[1], X2: values[2], Y2: values[3]}
	if err := h.validate.Struct(rect); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, nil, nil, apperrors.NewInternal("validate coords").WithInnerError(err)
		}
		for _, fe := range verrs {
			fields = append(fields, responder.FieldError{
				Field:   fe.Field(),
				Message: "failed " + fe.Tag() + " check",
			})
		}
		return nil, nil, fields, nil
	}

	return data, rect, nil, nil
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func summarize(guid int64, outcome Outcome) GenerationResponse {
	resp := GenerationResponse{GUID: guid, Result: outcome.Result()}
	switch o := outcome.(type) {
	case *Success:
		resp.IconTime = o.IconTime
		resp.Written = o.Written
		resp.Skipped = o.Skipped
	case *PartialFailure:
		resp.Written = o.Written
		resp.Skipped = o.Skipped
		resp.Failed = make(map[string]string, len(o.Failed))
		for name, err := range o.Failed {
			resp.Failed[name] = err.Error()
		}
	}
	return resp
}

func (h *UploadHandler) logFailure(ctx context.Context, guid int64, outcome Outcome) {
	if outcome.OK() {
		return
	}
	logging.WithContext(h.logger, ctx).Warn("icon upload did not complete",
		zap.Int64("guid", guid), zap.String("result", outcome.Result()), zap.Error(outcome.Err()))
}

var _ Authorizer = (*access.Authorizer)(nil)
