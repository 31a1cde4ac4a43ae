package icon

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/icons/access"
	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/processor"
	"github.com/leeforge/icons/media/storage"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultServeSize is served when the request names no size.
const DefaultServeSize = "medium"

const cacheLifetime = 10 * 24 * time.Hour

var sizeNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Server streams stored icons with HTTP cache headers. Missing entities,
// sizes and files all produce an empty 404.
type Server struct {
	entities entity.Store
	blobs    storage.BlobStore
	logger   logging.Logger
	// legacy serves icons/<guid><size>.jpg owned by the entity owner for
	// every entity, as older stores laid them out.
	legacy bool
	now    func() time.Time
}

func NewServer(entities entity.Store, blobs storage.BlobStore, logger logging.Logger, legacyPaths bool) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		entities: entities,
		blobs:    blobs,
		logger:   logger,
		legacy:   legacyPaths,
		now:      time.Now,
	}
}

// ServeHTTP serves GET /icon?guid=&size=.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.Serve(w, r, q.Get("guid"), q.Get("size"))
}

// ServeRoute serves GET /icons/{guid}/{size}.
func (s *Server) ServeRoute(w http.ResponseWriter, r *http.Request) {
	s.Serve(w, r, chi.URLParam(r, "guid"), chi.URLParam(r, "size"))
}

// Serve writes the icon of size for the entity guid.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, guidParam, size string) {
	guid, err := strconv.ParseInt(guidParam, 10, 64)
	if err != nil || guid <= 0 {
		notFound(w)
		return
	}
	size = normalizeSize(size)
	if !sizeNamePattern.MatchString(size) {
		notFound(w)
		return
	}

	icon, ok := s.load(r.Context(), guid, size)
	if !ok {
		notFound(w)
		return
	}

	etag := etagFor(icon.iconTime, size)
	w.Header().Set("Etag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h := w.Header()
	h.Set("Content-Type", icon.contentType)
	h.Set("Expires", s.now().Add(cacheLifetime).UTC().Format(http.TimeFormat))
	h.Set("Pragma", "public")
	h.Set("Cache-Control", "public")
	h.Set("Content-Length", strconv.Itoa(len(icon.data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(icon.data)
	}
}

type storedIcon struct {
	data        []byte
	contentType string
	iconTime    string
}

// load reads the icon with hidden entities visible. The elevation ends when
// load returns, before anything is written to the client.
func (s *Server) load(ctx context.Context, guid int64, size string) (storedIcon, bool) {
	ctx, gate := access.Ensure(ctx)
	tok := gate.Elevate()
	defer tok.Release()

	logger := logging.WithContext(s.logger, ctx).With(zap.Int64("guid", guid), zap.String("size", size))

	e, err := s.entities.Get(ctx, guid)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			logger.Error("icon entity lookup failed", zap.Error(err))
		}
		return storedIcon{}, false
	}

	owner, filename, contentType := s.locate(e, size)
	data, err := s.blobs.Read(ctx, owner, filename)
	if err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			logger.Error("icon read failed", zap.String("filename", filename), zap.Error(err))
		}
		return storedIcon{}, false
	}

	// A missing icontime hashes as the empty string, matching ETags issued
	// for icons stored before icontime was recorded.
	var iconTime string
	if t, ok := e.Attributes.Int(entity.AttrIconTime); ok {
		iconTime = strconv.FormatInt(t, 10)
	}
	return storedIcon{data: data, contentType: contentType, iconTime: iconTime}, true
}

// locate mirrors where Generate wrote the icon, unless legacy paths are on.
func (s *Server) locate(e *entity.Entity, size string) (owner int64, filename, contentType string) {
	if s.legacy {
		contentType = e.MimeType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		return e.OwnerGUID, "icons/" + strconv.FormatInt(e.GUID, 10) + size + ".jpg", contentType
	}
	return Owner(e), Prefix(e, "") + size + processor.ExtensionFor(e.MimeType), processor.ContentTypeFor(e.MimeType)
}

// ETag is the quoted md5 of the icontime followed by the size name.
func ETag(iconTime int64, size string) string {
	return etagFor(strconv.FormatInt(iconTime, 10), size)
}

func etagFor(iconTime, size string) string {
	sum := md5.Sum([]byte(iconTime + size))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func normalizeSize(size string) string {
	size = strings.TrimSpace(size)
	if size == "" {
		return DefaultServeSize
	}
	return cases.Lower(language.Und).String(size)
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}
