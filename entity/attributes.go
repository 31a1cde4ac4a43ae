package entity

import (
	"fmt"
	"regexp"
	"strconv"
)

// Reserved attribute names written by icon generation.
const (
	AttrIconTime = "icontime"
	AttrX1       = "x1"
	AttrY1       = "y1"
	AttrX2       = "x2"
	AttrY2       = "y2"
)

var CropAttributes = []string{AttrX1, AttrY1, AttrX2, AttrY2}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

func ValidName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid attribute name %q", name)
	}
	return nil
}

// Attributes holds named entity metadata. Names are validated on write; a nil
// Attributes is readable but must not be written.
type Attributes map[string]string

func (a Attributes) SetString(name, value string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	a[name] = value
	return nil
}

func (a Attributes) SetInt(name string, value int64) error {
	return a.SetString(name, strconv.FormatInt(value, 10))
}

func (a Attributes) String(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Int returns 0, false when the attribute is missing or not an integer.
func (a Attributes) Int(name string) (int64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a Attributes) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Attributes) Clone() Attributes {
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// Merge copies every entry of other into a, overwriting on collision.
func (a Attributes) Merge(other Attributes) {
	for k, v := range other {
		a[k] = v
	}
}
