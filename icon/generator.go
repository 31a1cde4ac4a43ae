package icon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"strconv"
	"time"

	"github.com/leeforge/icons/entity"
	apperrors "github.com/leeforge/icons/errors"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/processor"
	"github.com/leeforge/icons/media/storage"
	"github.com/leeforge/icons/metrics"
	"github.com/leeforge/icons/plugin"
	"go.uber.org/zap"
)

// EventGenerated is published after every successful generation.
const EventGenerated = "icon.generated"

// GeneratedEvent is the payload of EventGenerated.
type GeneratedEvent struct {
	GUID     int64    `json:"guid"`
	IconTime int64    `json:"icontime"`
	Sizes    []string `json:"sizes"`
}

// DefaultMaxPixels bounds the decoded size of a source image.
const DefaultMaxPixels = 40_000_000

var errSkipped = errors.New("variant skipped")

// CropRect is a crop rectangle in source pixel space.
type CropRect struct {
	X1 int `json:"x1" validate:"gte=0"`
	Y1 int `json:"y1" validate:"gte=0"`
	X2 int `json:"x2" validate:"gtefield=X1"`
	Y2 int `json:"y2" validate:"gtefield=Y1"`
}

func (c CropRect) Validate() error {
	if c.X1 < 0 || c.Y1 < 0 {
		return apperrors.NewInvalid("coords", c, "coordinates must not be negative")
	}
	if c.X2 < c.X1 || c.Y2 < c.Y1 {
		return apperrors.NewInvalid("coords", c, "x2 and y2 must not be smaller than x1 and y1")
	}
	return nil
}

func (c CropRect) Rectangle() image.Rectangle {
	return image.Rect(c.X1, c.Y1, c.X2, c.Y2)
}

func (c CropRect) attributes() map[string]int {
	return map[string]int{
		entity.AttrX1: c.X1,
		entity.AttrY1: c.Y1,
		entity.AttrX2: c.X2,
		entity.AttrY2: c.Y2,
	}
}

// Options are per-call overrides.
type Options struct {
	// Sizes are merged over the resolved size table.
	Sizes  Sizes
	Coords *CropRect
	// Prefix replaces the kind-derived filestore prefix; the GUID is appended.
	Prefix string
}

type GeneratorConfig struct {
	Resolver    *Resolver
	Blobs       storage.BlobStore
	Entities    entity.Store
	Events      plugin.EventBus
	Metrics     *metrics.Collector
	Logger      logging.Logger
	JPEGQuality int
	// MaxPixels rejects sources whose header declares more pixels.
	MaxPixels int64
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Generator derives, stores and records icon variants for entities.
type Generator struct {
	resolver *Resolver
	blobs    storage.BlobStore
	entities entity.Store
	events   plugin.EventBus
	metrics  *metrics.Collector
	logger   logging.Logger
	quality  int
	pixels   int64
	now      func() time.Time
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("icon generator: blob store is required")
	}
	if cfg.Entities == nil {
		return nil, fmt.Errorf("icon generator: entity store is required")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver(DefaultSiteSizes(), nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = processor.DefaultJPEGQuality
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Generator{
		resolver: cfg.Resolver,
		blobs:    cfg.Blobs,
		entities: cfg.Entities,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		quality:  cfg.JPEGQuality,
		pixels:   cfg.MaxPixels,
		now:      cfg.Clock,
	}, nil
}

// Generate derives every resolved variant of e from src, falling back to the
// entity's own stored content when src is nil.
//
// Variants are processed independently from one decode of the source; a
// failing variant does not stop the others. The group copy, crop attributes
// and icontime are committed only when no variant failed.
func (g *Generator) Generate(ctx context.Context, e *entity.Entity, src Source, opts Options) Outcome {
	out := g.generate(ctx, e, src, opts)
	g.record(out)
	return out
}

func (g *Generator) generate(ctx context.Context, e *entity.Entity, src Source, opts Options) Outcome {
	logger := logging.WithContext(g.logger, ctx)

	if e == nil || !e.Kind.Recognized() {
		kind := ""
		if e != nil {
			kind = string(e.Kind)
		}
		logger.Warn("icon generation not applicable", zap.String("kind", kind))
		return &Fatal{Reason: apperrors.NewNotApplicable("entity kind does not carry icons").WithDetail("kind", kind)}
	}
	logger = logger.With(zap.Int64("guid", e.GUID))

	if opts.Coords != nil {
		if err := opts.Coords.Validate(); err != nil {
			return &Fatal{Reason: err}
		}
	}

	src = resolveSource(e, src)
	if src == nil {
		logger.Warn("icon generation has no source")
		return &Fatal{Reason: apperrors.NewNoSource("no icon source")}
	}
	raw, err := src.Load(ctx, g.blobs)
	if err != nil {
		logger.Warn("icon source unreadable", zap.Stringer("source", src), zap.Error(err))
		return &Fatal{Reason: apperrors.NewNoSource("icon source unreadable").WithInnerError(err)}
	}
	w, h, err := processor.Dimensions(bytes.NewReader(raw))
	if err != nil {
		logger.Warn("icon source is not an image", zap.Stringer("source", src), zap.Error(err))
		return &Fatal{Reason: apperrors.NewProcessing("icon source is not an image", err)}
	}
	if int64(w)*int64(h) > g.pixels {
		logger.Warn("icon source too large", zap.Int("width", w), zap.Int("height", h))
		return &Fatal{Reason: apperrors.NewInvalid("source", fmt.Sprintf("%dx%d", w, h),
			fmt.Sprintf("image exceeds %d pixels", g.pixels))}
	}
	img, err := processor.Decode(bytes.NewReader(raw))
	if err != nil {
		logger.Warn("icon source is not an image", zap.Stringer("source", src), zap.Error(err))
		return &Fatal{Reason: apperrors.NewProcessing("icon source is not an image", err)}
	}

	sizes := g.resolver.Resolve(ctx, e, opts.Sizes)
	prefix := Prefix(e, opts.Prefix)
	owner := Owner(e)
	master := sizes.Master()

	written := make(map[string]string)
	failed := make(map[string]error)
	var skipped []string

	for _, name := range sizes.Names() {
		if name == MasterSize {
			continue
		}
		filename, err := g.variant(ctx, e, img, name, sizes[name], master, opts.Coords, prefix, owner)
		switch {
		case errors.Is(err, errSkipped):
			skipped = append(skipped, name)
		case err != nil:
			logger.Error("icon variant failed", zap.String("size", name), zap.Error(err))
			failed[name] = err
		default:
			written[name] = filename
		}
	}

	if len(failed) > 0 {
		return &PartialFailure{Written: written, Skipped: skipped, Failed: failed}
	}

	iconTime, err := g.commit(ctx, e, raw, opts.Coords)
	if err != nil {
		logger.Error("icon commit failed", zap.Error(err))
		return &Fatal{Reason: err}
	}

	g.publish(ctx, e.GUID, iconTime, written)
	logger.Debug("icons generated", zap.Int("written", len(written)), zap.Int("skipped", len(skipped)))

	return &Success{Written: written, Skipped: skipped, IconTime: iconTime}
}

// variant produces, writes and records one size. It returns errSkipped when
// a crop rectangle was given for a size that cannot be cropped.
func (g *Generator) variant(ctx context.Context, e *entity.Entity, src image.Image, name string,
	spec SizeSpec, master SizeSpec, coords *CropRect, prefix string, owner int64) (string, error) {
	croppable := spec.IsCroppable(name)
	if coords != nil && !croppable {
		return "", errSkipped
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}

	img := src
	var err error
	if coords != nil {
		if img, err = processor.FitInside(img, master.Width, master.Height); err != nil {
			return "", err
		}
		if img, err = processor.Crop(img, coords.Rectangle()); err != nil {
			return "", err
		}
	}

	if croppable {
		img, err = processor.Cover(img, spec.Width, spec.Height)
	} else {
		img, err = processor.FitInside(img, spec.Width, spec.Height)
	}
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := processor.Encode(&buf, img, e.MimeType, g.quality); err != nil {
		return "", err
	}

	filename := prefix + name + processor.ExtensionFor(e.MimeType)
	if err := g.blobs.Write(ctx, owner, filename, buf.Bytes()); err != nil {
		return "", apperrors.NewStorage("write icon", err)
	}

	if spec.MetadataField != "" {
		attrs := entity.Attributes{}
		if err := attrs.SetString(spec.MetadataField, filename); err != nil {
			return "", err
		}
		if err := g.setAttributes(ctx, e, attrs); err != nil {
			return "", err
		}
	}
	return filename, nil
}

// commit runs after every variant succeeded.
func (g *Generator) commit(ctx context.Context, e *entity.Entity, raw []byte, coords *CropRect) (int64, error) {
	if e.Kind == entity.KindGroup {
		if err := g.blobs.Write(ctx, e.OwnerGUID, GroupOriginal(e.GUID), raw); err != nil {
			return 0, apperrors.NewStorage("write group original", err)
		}
	}

	attrs := entity.Attributes{}
	var rect CropRect
	if coords != nil {
		rect = *coords
	}
	for name, v := range rect.attributes() {
		attrs[name] = strconv.Itoa(v)
	}

	iconTime := g.now().Unix()
	if prev, ok := e.Attributes.Int(entity.AttrIconTime); ok && prev >= iconTime {
		iconTime = prev + 1
	}
	attrs[entity.AttrIconTime] = strconv.FormatInt(iconTime, 10)

	if err := g.setAttributes(ctx, e, attrs); err != nil {
		return 0, err
	}
	return iconTime, nil
}

func (g *Generator) setAttributes(ctx context.Context, e *entity.Entity, attrs entity.Attributes) error {
	if err := g.entities.SetAttributes(ctx, e.GUID, attrs); err != nil {
		return apperrors.NewStorage("save entity attributes", err)
	}
	if e.Attributes == nil {
		e.Attributes = entity.Attributes{}
	}
	e.Attributes.Merge(attrs)
	return nil
}

func (g *Generator) publish(ctx context.Context, guid, iconTime int64, written map[string]string) {
	if g.events == nil {
		return
	}
	sizes := make([]string, 0, len(written))
	for name := range written {
		sizes = append(sizes, name)
	}
	sort.Strings(sizes)

	err := g.events.Publish(ctx, plugin.Event{
		Name:      EventGenerated,
		Data:      GeneratedEvent{GUID: guid, IconTime: iconTime, Sizes: sizes},
		Source:    PluginName,
		Timestamp: g.now(),
	})
	if err != nil {
		logging.WithContext(g.logger, ctx).Warn("publish icon event failed", zap.Error(err))
	}
}

func (g *Generator) record(out Outcome) {
	if g.metrics == nil {
		return
	}
	g.metrics.IncCounter("icon_generations_total", map[string]string{"result": out.Result()})

	switch o := out.(type) {
	case *Success:
		g.countVariants(len(o.Written), len(o.Skipped), 0)
	case *PartialFailure:
		g.countVariants(len(o.Written), len(o.Skipped), len(o.Failed))
	}
}

func (g *Generator) countVariants(written, skipped, failed int) {
	for status, n := range map[string]int{"written": written, "skipped": skipped, "failed": failed} {
		if n > 0 {
			g.metrics.AddCounter("icon_variants_total", float64(n), map[string]string{"status": status})
		}
	}
}

// Prefix returns the filestore prefix for e's icons: explicit, when given,
// otherwise profile/, groups/ or icons/ by kind; the GUID is appended.
func Prefix(e *entity.Entity, explicit string) string {
	prefix := explicit
	if prefix == "" {
		switch e.Kind {
		case entity.KindUser:
			prefix = "profile/"
		case entity.KindGroup:
			prefix = "groups/"
		default:
			prefix = "icons/"
		}
	}
	return prefix + strconv.FormatInt(e.GUID, 10)
}

// Owner returns the blob owner of e's icons: users own their own icons,
// everything else is owned by the entity owner.
func Owner(e *entity.Entity) int64 {
	if e.Kind == entity.KindUser {
		return e.GUID
	}
	return e.OwnerGUID
}

// GroupOriginal is the full-size copy kept for groups.
func GroupOriginal(guid int64) string {
	return "groups/" + strconv.FormatInt(guid, 10) + ".jpg"
}
