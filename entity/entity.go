// Package entity models the persistent objects that carry icons and the
// stores that keep them.
package entity

import (
	"fmt"
)

type Kind string

const (
	KindUser   Kind = "user"
	KindGroup  Kind = "group"
	KindObject Kind = "object"
	KindSite   Kind = "site"
)

func (k Kind) Recognized() bool {
	switch k {
	case KindUser, KindGroup, KindObject, KindSite:
		return true
	}
	return false
}

// SubtypeFile marks objects that are uploaded files.
const SubtypeFile = "file"

// StoredFile references a blob held by the blob store.
type StoredFile struct {
	Owner    int64
	Filename string
}

type Entity struct {
	GUID       int64
	Kind       Kind
	Subtype    string
	OwnerGUID  int64
	MimeType   string
	Hidden     bool
	Content    *StoredFile
	Attributes Attributes
}

// HasOwnContent reports whether the entity is backed by a stored file.
func (e *Entity) HasOwnContent() bool {
	return e != nil && e.Content != nil && e.Content.Filename != ""
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Content != nil {
		content := *e.Content
		c.Content = &content
	}
	c.Attributes = e.Attributes.Clone()
	return &c
}

func (e *Entity) Validate() error {
	if e == nil {
		return fmt.Errorf("entity is nil")
	}
	if e.GUID <= 0 {
		return fmt.Errorf("entity guid must be positive, got %d", e.GUID)
	}
	if e.Kind == "" {
		return fmt.Errorf("entity %d has no kind", e.GUID)
	}
	for name := range e.Attributes {
		if err := ValidName(name); err != nil {
			return err
		}
	}
	return nil
}
