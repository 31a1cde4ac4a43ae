// Package icon derives fixed-size icon variants from a source image, stores
// them in the blob store and serves them back with cache headers.
package icon

import (
	"fmt"
	"sort"
)

// MasterSize bounds the pre-crop scale step and is never written itself.
const MasterSize = "master"

// SizeSpec describes one named icon variant.
type SizeSpec struct {
	Width     int  `mapstructure:"w" yaml:"w" json:"w"`
	Height    int  `mapstructure:"h" yaml:"h" json:"h"`
	Croppable bool `mapstructure:"croppable" yaml:"croppable" json:"croppable"`
	// Upscale is carried for configuration compatibility. Fit-inside scaling
	// never enlarges a source regardless of its value.
	Upscale bool `mapstructure:"upscale" yaml:"upscale" json:"upscale"`
	// MetadataField names the entity attribute that receives the stored
	// filename of this variant.
	MetadataField string `mapstructure:"metadata-name" yaml:"metadata-name" json:"metadata_name,omitempty"`
}

func (s SizeSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid icon dimensions %dx%d", s.Width, s.Height)
	}
	return nil
}

// croppableNames are always cropped to their exact dimensions.
var croppableNames = map[string]struct{}{
	"topbar": {},
	"tiny":   {},
	"small":  {},
	"medium": {},
	"large":  {},
}

// IsCroppable reports whether the variant called name is scale-to-cover plus
// center-crop rather than fit-inside.
func (s SizeSpec) IsCroppable(name string) bool {
	if _, ok := croppableNames[name]; ok {
		return true
	}
	return s.Croppable
}

// Sizes maps variant names to their specs.
type Sizes map[string]SizeSpec

func (s Sizes) Clone() Sizes {
	c := make(Sizes, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Names returns the variant names in a stable order.
func (s Sizes) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var DefaultMaster = SizeSpec{Width: 550, Height: 550}

// Master returns the master bound, or DefaultMaster when none is usable.
func (s Sizes) Master() SizeSpec {
	if m, ok := s[MasterSize]; ok && m.Validate() == nil {
		return m
	}
	return DefaultMaster
}

// FileSizes is the fixed table used for entities of subtype "file".
func FileSizes() Sizes {
	return Sizes{
		"thumb":      {Width: 60, Height: 60, Croppable: true, Upscale: true, MetadataField: "thumbnail"},
		"smallthumb": {Width: 153, Height: 153, Croppable: true, Upscale: true, MetadataField: "smallthumb"},
		"largethumb": {Width: 600, Height: 600, Croppable: true, Upscale: true, MetadataField: "largethumb"},
	}
}

// DefaultSiteSizes is used when the configuration declares no sizes.
func DefaultSiteSizes() Sizes {
	return Sizes{
		"topbar":   {Width: 16, Height: 16, Croppable: true},
		"tiny":     {Width: 25, Height: 25, Croppable: true},
		"small":    {Width: 40, Height: 40, Croppable: true},
		"medium":   {Width: 100, Height: 100, Croppable: true},
		"large":    {Width: 200, Height: 200, Croppable: true},
		MasterSize: {Width: 550, Height: 550},
	}
}
