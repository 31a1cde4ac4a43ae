package icon

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/icons/access"
	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/http/middleware"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/media/storage"
	"github.com/leeforge/icons/metrics"
	"github.com/leeforge/icons/plugin"
	"go.uber.org/zap"
)

const (
	PluginName = "icons"

	// Services resolved by the plugin. The host registers them before Bootstrap.
	ServiceEntityStore = "entity.store"
	ServiceBlobStore   = "storage.blobs"
	// ServiceGenerator is registered by the plugin.
	ServiceGenerator = "icons.generator"

	// EventContentUpdated asks for a file entity's icons to be regenerated
	// from its own stored content. The payload is a ContentUpdated.
	EventContentUpdated = "entity.content.updated"
)

type ContentUpdated struct {
	GUID int64 `json:"guid"`
}

// Config is bound from the plugin's configuration section.
type Config struct {
	// Sizes is the site-wide size table for entities that are not files.
	Sizes          Sizes   `mapstructure:"sizes"`
	LegacyPaths    bool    `mapstructure:"legacy-paths"`
	JPEGQuality    int     `mapstructure:"jpeg-quality" default:"80"`
	MaxUploadBytes int64   `mapstructure:"max-upload-bytes" default:"10485760"`
	MaxPixels      int64   `mapstructure:"max-pixels" default:"40000000"`
	Admins         []int64 `mapstructure:"admins"`
}

// Plugin wires icon generation and serving into the runtime.
//
// Implements: Plugin, Disableable, MiddlewareProvider, RouteProvider,
// EventSubscriber, HealthReporter, Configurable
type Plugin struct {
	cfg       Config
	viewer    ViewerFunc
	logger    logging.Logger
	entities  entity.Store
	generator *Generator
	server    *Server
	upload    *UploadHandler
	metrics   *metrics.Collector
	subs      []plugin.Subscription
}

// New returns the plugin. A nil viewer reads the X-User-GUID header.
func New(viewer ViewerFunc) *Plugin {
	return &Plugin{viewer: viewer}
}

// --- Core Interface ---

func (p *Plugin) Name() string           { return PluginName }
func (p *Plugin) Version() string        { return "1.0.0" }
func (p *Plugin) Dependencies() []string { return nil }

func (p *Plugin) Enable(ctx context.Context, app *plugin.AppContext) error {
	p.logger = app.Logger
	if p.logger == nil {
		p.logger = logging.Nop()
	}

	if err := app.Config.Bind(&p.cfg); err != nil {
		return err
	}
	if len(p.cfg.Sizes) == 0 {
		p.cfg.Sizes = DefaultSiteSizes()
	}

	entities, err := plugin.Resolve[entity.Store](app.Services, ServiceEntityStore)
	if err != nil {
		return err
	}
	blobs, err := plugin.Resolve[storage.BlobStore](app.Services, ServiceBlobStore)
	if err != nil {
		return err
	}
	authz, err := access.NewAuthorizer(access.AuthorizerConfig{Admins: p.cfg.Admins})
	if err != nil {
		return fmt.Errorf("icons authorizer: %w", err)
	}

	p.entities = entities
	p.metrics = metrics.NewCollector()
	p.generator, err = NewGenerator(GeneratorConfig{
		Resolver:    NewResolver(p.cfg.Sizes, app.Hooks),
		Blobs:       blobs,
		Entities:    entities,
		Events:      app.Events,
		Metrics:     p.metrics,
		Logger:      p.logger,
		JPEGQuality: p.cfg.JPEGQuality,
		MaxPixels:   p.cfg.MaxPixels,
	})
	if err != nil {
		return err
	}
	p.server = NewServer(entities, blobs, p.logger, p.cfg.LegacyPaths)
	p.upload = NewUploadHandler(p.generator, entities, authz, p.viewer, p.cfg.MaxUploadBytes, p.logger)

	p.logger.Info("icons plugin enabled",
		zap.String("blobs", blobs.Name()),
		zap.Int("sizes", len(p.cfg.Sizes)),
		zap.Bool("legacy_paths", p.cfg.LegacyPaths))

	return app.Services.Register(ServiceGenerator, p.generator)
}

// --- Disableable ---

func (p *Plugin) Disable(ctx context.Context, app *plugin.AppContext) error {
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	p.subs = nil
	return nil
}

// --- MiddlewareProvider ---

func (p *Plugin) RegisterMiddlewares(router chi.Router) {
	router.Use(middleware.TraceIDMiddleware(), middleware.SecurityHeaders(), access.Middleware(), p.metrics.Middleware)
}

// --- RouteProvider ---

func (p *Plugin) RegisterRoutes(router chi.Router) {
	router.Get("/icon", p.server.ServeHTTP)
	router.Route("/icons", func(r chi.Router) {
		r.Get("/_stats", p.metrics.Handler().ServeHTTP)
		r.Get("/{guid}/{size}", p.server.ServeRoute)
		r.Post("/{guid}", p.upload.ServeHTTP)
	})
}

// --- EventSubscriber ---

func (p *Plugin) SubscribeEvents(bus plugin.EventBus) {
	p.subs = append(p.subs, bus.Subscribe(EventContentUpdated, p.handleContentUpdated))
}

func (p *Plugin) handleContentUpdated(ctx context.Context, e plugin.Event) error {
	payload, err := plugin.Payload[ContentUpdated](e)
	if err != nil {
		return err
	}

	// Regeneration is not tied to a viewer, so hidden entities are included.
	ctx, gate := access.Ensure(ctx)
	tok := gate.Elevate()
	defer tok.Release()

	ent, err := p.entities.Get(ctx, payload.GUID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return err
	}
	if !ent.HasOwnContent() {
		return nil
	}
	return p.generator.Generate(ctx, ent, nil, Options{}).Err()
}

// --- HealthReporter ---

func (p *Plugin) HealthCheck(ctx context.Context) error {
	if p.generator == nil {
		return fmt.Errorf("icon generator not initialized")
	}
	return nil
}

// --- Configurable ---

func (p *Plugin) PluginOptions() plugin.PluginOptions {
	return plugin.PluginOptions{
		Description: "Icon generation, upload and serving",
	}
}

// Generator returns the generator built by Enable.
func (p *Plugin) Generator() *Generator {
	return p.generator
}

var (
	_ plugin.Plugin             = (*Plugin)(nil)
	_ plugin.Disableable        = (*Plugin)(nil)
	_ plugin.MiddlewareProvider = (*Plugin)(nil)
	_ plugin.RouteProvider      = (*Plugin)(nil)
	_ plugin.EventSubscriber    = (*Plugin)(nil)
	_ plugin.HealthReporter     = (*Plugin)(nil)
	_ plugin.Configurable       = (*Plugin)(nil)
)
