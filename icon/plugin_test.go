package icon

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/http/responder"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/storage"
	"github.com/leeforge/icons/plugin"
	"github.com/leeforge/icons/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	rt       *runtime.Runtime
	entities *entity.MemoryStore
	local    *storage.LocalStore
	plugin   *Plugin
}

func newHarness(t *testing.T, settings map[string]any, failOn ...string) *harness {
	t.Helper()
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	var blobs storage.BlobStore = local
	if len(failOn) > 0 {
		blobs = &failingBlobs{BlobStore: local, markers: failOn}
	}

	h := &harness{entities: entity.NewMemoryStore(), local: local, plugin: New(nil)}
	h.rt = runtime.NewRuntime(runtime.Config{
		Logger: logging.Nop(),
		PluginConfig: func(name string) plugin.ConfigProvider {
			return plugin.NewMapConfigProvider(settings)
		},
	})
	require.NoError(t, h.rt.Services().Register(ServiceEntityStore, entity.Store(h.entities)))
	require.NoError(t, h.rt.Services().Register(ServiceBlobStore, blobs))
	require.NoError(t, h.rt.Register(h.plugin))
	require.NoError(t, h.rt.Bootstrap(context.Background()))
	t.Cleanup(func() { _ = h.rt.Shutdown(context.Background()) })
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.rt.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, guid int64, viewer int64, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		part, err := mw.CreateFormFile("icon", "icon.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/icons/"+strconv.FormatInt(guid, 10), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if viewer > 0 {
		req.Header.Set(ViewerHeader, strconv.FormatInt(viewer, 10))
	}
	return req
}

type envelope struct {
	Data  GenerationResponse `json:"data"`
	Error *responder.Error   `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, stdjson.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestPluginUploadAndServe(t *testing.T) {
	h := newHarness(t, map[string]any{
		"sizes": map[string]any{
			"small":  map[string]any{"w": 40, "h": 40},
			"medium": map[string]any{"w": 100, "h": 100},
		},
	})
	require.NoError(t, h.entities.Put(context.Background(), &entity.Entity{GUID: 21, Kind: entity.KindUser}))

	rec := h.do(uploadRequest(t, 21, 21, sourceJPEG(t, 300, 200), map[string]string{
		"x1": "0", "y1": "0", "x2": "150", "y2": "150",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, ResultSuccess, env.Data.Result)
	assert.Equal(t, map[string]string{"small": "profile/21small.jpg", "medium": "profile/21medium.jpg"}, env.Data.Written)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	stored, err := h.entities.Get(context.Background(), 21)
	require.NoError(t, err)
	x2, _ := stored.Attributes.Int(entity.AttrX2)
	assert.Equal(t, int64(150), x2)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/icons/21/medium", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ETag(env.Data.IconTime, "medium"), rec.Header().Get("Etag"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/icon?guid=21&size=small", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/icons/_stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "icon_generations_total:result=success")
}

func TestPluginUploadAuthorization(t *testing.T) {
	h := newHarness(t, map[string]any{"admins": []any{99}})
	require.NoError(t, h.entities.Put(context.Background(), &entity.Entity{GUID: 30, Kind: entity.KindGroup, OwnerGUID: 31}))
	img := sourceJPEG(t, 64, 64)

	assert.Equal(t, http.StatusForbidden, h.do(uploadRequest(t, 30, 0, img, nil)).Code)
	assert.Equal(t, http.StatusForbidden, h.do(uploadRequest(t, 30, 45, img, nil)).Code)
	assert.Equal(t, http.StatusOK, h.do(uploadRequest(t, 30, 31, img, nil)).Code)
	assert.Equal(t, http.StatusOK, h.do(uploadRequest(t, 30, 99, img, nil)).Code)
	assert.Equal(t, http.StatusNotFound, h.do(uploadRequest(t, 404, 99, img, nil)).Code)
}

func TestPluginUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.entities.Put(context.Background(), &entity.Entity{GUID: 40, Kind: entity.KindUser}))
	img := sourceJPEG(t, 64, 64)

	rec := h.do(uploadRequest(t, 40, 40, nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_source", decode(t, rec).Error.Type)

	rec = h.do(uploadRequest(t, 40, 40, img, map[string]string{"x1": "50", "y1": "0", "x2": "10", "y2": "10"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, responder.ErrCodeValidationFailed, env.Error.Code)
	assert.Contains(t, rec.Body.String(), `"x2"`)

	rec = h.do(uploadRequest(t, 40, 40, img, map[string]string{"x1": "a"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(uploadRequest(t, 40, 40, []byte("not an image"), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "processing", decode(t, rec).Error.Type)
}

func TestPluginUploadPartialFailure(t *testing.T) {
	h := newHarness(t, nil, "medium")
	require.NoError(t, h.entities.Put(context.Background(), &entity.Entity{GUID: 50, Kind: entity.KindUser}))

	rec := h.do(uploadRequest(t, 50, 50, sourceJPEG(t, 64, 64), nil))

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, ResultPartialFailure, env.Data.Result)
	assert.Contains(t, env.Data.Failed, "medium")
	assert.Contains(t, env.Data.Written, "small")
}

func TestPluginRegeneratesOnContentUpdate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.local.Write(ctx, 8, "file/doc.png", sourceJPEG(t, 100, 100)))
	require.NoError(t, h.entities.Put(ctx, &entity.Entity{
		GUID:      60,
		Kind:      entity.KindObject,
		Subtype:   entity.SubtypeFile,
		OwnerGUID: 8,
		MimeType:  "image/jpeg",
		Hidden:    true,
		Content:   &entity.StoredFile{Owner: 8, Filename: "file/doc.png"},
	}))

	require.NoError(t, h.rt.Publish(ctx, plugin.Event{Name: EventContentUpdated, Data: ContentUpdated{GUID: 60}}))

	require.Eventually(t, func() bool {
		ok, err := h.local.Exists(ctx, 8, "icons/60thumb.jpg")
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPluginServicesAndHealth(t *testing.T) {
	h := newHarness(t, nil)

	gen, err := plugin.Resolve[*Generator](h.rt.Services(), ServiceGenerator)
	require.NoError(t, err)
	assert.Same(t, h.plugin.Generator(), gen)
	assert.Empty(t, h.rt.Health(context.Background()))

	state, ok := h.rt.GetPluginState(PluginName)
	require.True(t, ok)
	assert.Equal(t, plugin.StateEnabled, state)
}

func TestPluginFailsWithoutServices(t *testing.T) {
	rt := runtime.NewRuntime(runtime.Config{Logger: logging.Nop()})
	require.NoError(t, rt.Register(New(nil)))

	assert.Error(t, rt.Bootstrap(context.Background()))
}
