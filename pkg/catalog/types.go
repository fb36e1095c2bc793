package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrModuleNotFound is returned when a module id is not in the catalog
	ErrModuleNotFound = errors.New("module not found")
	// ErrModuleReferenced is returned when a change targets a module that
	// tenants have already activated
	ErrModuleReferenced = errors.New("module is referenced by activations and cannot change")
)

// Module is a purchasable feature unit
type Module struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Route       string    `json:"route" yaml:"route"`
	Icon        string    `json:"icon,omitempty" yaml:"icon"`
	Visible     bool      `json:"visible" yaml:"visible"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// sameAttributes reports whether o carries the same catalog attributes as m
func (m *Module) sameAttributes(o *Module) bool {
	return m.Name == o.Name &&
		m.Description == o.Description &&
		m.Route == o.Route &&
		m.Icon == o.Icon &&
		m.Visible == o.Visible
}

// BuiltinTag names a tenant independent feature that lives outside the catalog
type BuiltinTag string

const (
	BuiltinAdmin   BuiltinTag = "admin"
	BuiltinStore   BuiltinTag = "store"
	BuiltinSupport BuiltinTag = "support"
	BuiltinNews    BuiltinTag = "news"
)

// BuiltinTags returns every known builtin tag
func BuiltinTags() []BuiltinTag {
	return []BuiltinTag{BuiltinAdmin, BuiltinStore, BuiltinSupport, BuiltinNews}
}

// Valid reports whether t is a known builtin tag
func (t BuiltinTag) Valid() bool {
	for _, known := range BuiltinTags() {
		if t == known {
			return true
		}
	}
	return false
}

type refKind uint8

const (
	refCatalog refKind = iota + 1
	refBuiltin
)

// ModuleRef references either a catalog module or a builtin feature.
// The zero value is invalid.
type ModuleRef struct {
	kind refKind
	id   int64
	tag  BuiltinTag
}

// Catalog references the catalog module with the given id
func Catalog(id int64) ModuleRef {
	return ModuleRef{kind: refCatalog, id: id}
}

// Builtin references a builtin feature
func Builtin(tag BuiltinTag) ModuleRef {
	return ModuleRef{kind: refBuiltin, tag: tag}
}

// CatalogID returns the module id for a catalog reference
func (r ModuleRef) CatalogID() (int64, bool) {
	return r.id, r.kind == refCatalog
}

// BuiltinTag returns the tag for a builtin reference
func (r ModuleRef) BuiltinTag() (BuiltinTag, bool) {
	return r.tag, r.kind == refBuiltin
}

// IsValid reports whether r was built by Catalog or Builtin
func (r ModuleRef) IsValid() bool {
	switch r.kind {
	case refCatalog:
		return r.id >= 0
	case refBuiltin:
		return r.tag.Valid()
	default:
		return false
	}
}

func (r ModuleRef) String() string {
	switch r.kind {
	case refCatalog:
		return "catalog:" + strconv.FormatInt(r.id, 10)
	case refBuiltin:
		return "builtin:" + string(r.tag)
	default:
		return "invalid"
	}
}

// ParseModuleRef parses "catalog:<id>" or "builtin:<tag>". A bare integer is
// read as a catalog id.
func ParseModuleRef(s string) (ModuleRef, error) {
	kind, value, found := strings.Cut(s, ":")
	if !found {
		kind, value = "catalog", s
	}

	switch kind {
	case "catalog":
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id < 0 {
			return ModuleRef{}, fmt.Errorf("invalid catalog module id: %q", value)
		}
		return Catalog(id), nil
	case "builtin":
		tag := BuiltinTag(value)
		if !tag.Valid() {
			return ModuleRef{}, fmt.Errorf("unknown builtin module: %q", value)
		}
		return Builtin(tag), nil
	default:
		return ModuleRef{}, fmt.Errorf("invalid module reference: %q", s)
	}
}
