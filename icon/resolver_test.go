package icon

import (
	"context"
	"testing"

	"github.com/leeforge/icons/entity"
	"github.com/leeforge/icons/logging"
	"github.com/leeforge/icons/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFileSubtypeUsesFileTable(t *testing.T) {
	r := NewResolver(Sizes{"other": {Width: 1, Height: 1}}, nil)

	sizes := r.Resolve(context.Background(), fileEntity(1, 2, "image/jpeg"), nil)

	assert.Equal(t, FileSizes(), sizes)
	assert.Equal(t, "thumbnail", sizes["thumb"].MetadataField)
}

func TestResolveMergesOverridesOverBase(t *testing.T) {
	base := Sizes{
		"small": {Width: 40, Height: 40},
		"large": {Width: 200, Height: 200},
	}
	overrides := Sizes{
		"small": {Width: 48, Height: 48, Croppable: true},
		"huge":  {Width: 800, Height: 800},
	}
	r := NewResolver(base, nil)
	e := &entity.Entity{GUID: 5, Kind: entity.KindUser}

	sizes := r.Resolve(context.Background(), e, overrides)

	assert.Equal(t, overrides["small"], sizes["small"])
	assert.Equal(t, overrides["huge"], sizes["huge"])
	assert.Equal(t, base["large"], sizes["large"])
	assert.Len(t, sizes, 3)
}

func TestResolveDoesNotLeakIntoDefaults(t *testing.T) {
	r := NewResolver(Sizes{"small": {Width: 40, Height: 40}}, nil)
	e := &entity.Entity{GUID: 5, Kind: entity.KindGroup}

	first := r.Resolve(context.Background(), e, Sizes{"extra": {Width: 1, Height: 1}})
	first["small"] = SizeSpec{Width: 1, Height: 1}

	second := r.Resolve(context.Background(), e, nil)
	assert.Equal(t, 40, second["small"].Width)
	assert.NotContains(t, second, "extra")
}

func TestResolveRunsHookKeyedByKind(t *testing.T) {
	hooks := plugin.NewHooks(logging.Nop())
	var gotSubtype any
	hooks.Register(HookIconSizes, string(entity.KindGroup), plugin.DefaultHookPriority,
		func(ctx context.Context, params plugin.HookParams, value any) (any, error) {
			gotSubtype = params["subtype"]
			sizes := value.(Sizes)
			delete(sizes, "small")
			sizes["banner"] = SizeSpec{Width: 600, Height: 100}
			return sizes, nil
		})
	r := NewResolver(Sizes{"small": {Width: 40, Height: 40}}, hooks)

	group := r.Resolve(context.Background(), &entity.Entity{GUID: 1, Kind: entity.KindGroup, Subtype: "club"}, nil)
	assert.NotContains(t, group, "small")
	assert.Contains(t, group, "banner")
	assert.Equal(t, "club", gotSubtype)

	user := r.Resolve(context.Background(), &entity.Entity{GUID: 2, Kind: entity.KindUser}, nil)
	assert.Contains(t, user, "small")
	assert.NotContains(t, user, "banner")
}

func TestResolveIgnoresHookReturningWrongType(t *testing.T) {
	hooks := plugin.NewHooks(logging.Nop())
	hooks.Register(HookIconSizes, plugin.HookTypeAll, plugin.DefaultHookPriority,
		func(ctx context.Context, params plugin.HookParams, value any) (any, error) {
			return map[string]int{"small": 1}, nil
		})
	r := NewResolver(Sizes{"small": {Width: 40, Height: 40}}, hooks)

	sizes := r.Resolve(context.Background(), &entity.Entity{GUID: 1, Kind: entity.KindSite}, nil)
	require.Contains(t, sizes, "small")
	assert.Equal(t, 40, sizes["small"].Width)
}

func TestSizeSpecHelpers(t *testing.T) {
	assert.True(t, SizeSpec{}.IsCroppable("medium"))
	assert.True(t, SizeSpec{Croppable: true}.IsCroppable("banner"))
	assert.False(t, SizeSpec{}.IsCroppable("banner"))

	assert.Equal(t, DefaultMaster, Sizes{}.Master())
	assert.Equal(t, DefaultMaster, Sizes{MasterSize: {Width: 0, Height: 10}}.Master())
	assert.Equal(t, 300, Sizes{MasterSize: {Width: 300, Height: 300}}.Master().Width)

	assert.Equal(t, []string{"a", "b", "c"}, Sizes{"c": {}, "a": {}, "b": {}}.Names())
	assert.Error(t, SizeSpec{Width: 10}.Validate())
}
