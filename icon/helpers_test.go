package icon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/storage"
	"github.com/leeforge/icons/metrics"
	"github.com/leeforge/icons/plugin"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sourceJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// failingBlobs fails writes whose filename contains any of the markers.
type failingBlobs struct {
	storage.BlobStore
	markers []string
}

func (f *failingBlobs) Write(ctx context.Context, owner int64, filename string, data []byte) error {
	for _, m := range f.markers {
		if strings.Contains(filename, m) {
			return fmt.Errorf("disk full")
		}
	}
	return f.BlobStore.Write(ctx, owner, filename, data)
}

type recordingBus struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (b *recordingBus) Publish(ctx context.Context, e plugin.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) Subscribe(string, plugin.EventHandler) plugin.Subscription { return nil }
func (b *recordingBus) Close() error                                               { return nil }

type fixture struct {
	gen      *Generator
	blobs    storage.BlobStore
	local    *storage.LocalStore
	entities *entity.MemoryStore
	hooks    *plugin.Hooks
	bus      *recordingBus
	metrics  *metrics.Collector
}

func newFixture(t *testing.T, failOn ...string) *fixture {
	t.Helper()
	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		local:    local,
		blobs:    local,
		entities: entity.NewMemoryStore(),
		hooks:    plugin.NewHooks(logging.Nop()),
		bus:      &recordingBus{},
		metrics:  metrics.NewCollector(),
	}
	if len(failOn) > 0 {
		f.blobs = &failingBlobs{BlobStore: local, markers: failOn}
	}

	f.gen, err = NewGenerator(GeneratorConfig{
		Resolver: NewResolver(DefaultSiteSizes(), f.hooks),
		Blobs:    f.blobs,
		Entities: f.entities,
		Events:   f.bus,
		Metrics:  f.metrics,
		Logger:   logging.Nop(),
		Clock:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) put(t *testing.T, e *entity.Entity) *entity.Entity {
	t.Helper()
	require.NoError(t, f.entities.Put(context.Background(), e))
	return e
}

func (f *fixture) get(t *testing.T, guid int64) *entity.Entity {
	t.Helper()
	e, err := f.entities.Get(context.Background(), guid)
	require.NoError(t, err)
	return e
}

func (f *fixture) dimensions(t *testing.T, owner int64, filename string) (int, int, string) {
	t.Helper()
	data, err := f.local.Read(context.Background(), owner, filename)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func (f *fixture) exists(t *testing.T, owner int64, filename string) bool {
	t.Helper()
	ok, err := f.local.Exists(context.Background(), owner, filename)
	require.NoError(t, err)
	return ok
}

func fileEntity(guid, owner int64, mime string) *entity.Entity {
	return &entity.Entity{
		GUID:      guid,
		Kind:      entity.KindObject,
		Subtype:   entity.SubtypeFile,
		OwnerGUID: owner,
		MimeType:  mime,
	}
}
