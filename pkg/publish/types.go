package publish

import (
	"time"

	"github.com/google/uuid"
)

// Context carries the production scoping information attached to a publish:
// which project the item belongs to, the entity (shot, asset, sequence) it is
// published against, and the pipeline step and task it was produced by.
type Context struct {
	Project string `json:"project"`
	Entity  string `json:"entity"`
	Step    string `json:"step,omitempty"`
	Task    string `json:"task,omitempty"`
}

// Item is one unit of publishable work presented to publish plugins. Items
// form a tree: a session or scene item at the root with file items parented
// beneath it. Plugins communicate derived values (publish path, version,
// folder) to sibling and child items through the Properties map.
type Item struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"` // e.g. "cache.alembic", "maya.session"
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Context     *Context               `json:"context,omitempty"`
	Parent      *Item                  `json:"-"`
	Thumbnail   string                 `json:"thumbnail,omitempty"`
	Properties  map[string]interface{} `json:"properties"`
	CreatedAt   time.Time              `json:"created_at"`

	children []*Item
}

// NewItem creates a root item of the given type.
func NewItem(itemType, name string) *Item {
	return &Item{
		ID:         uuid.NewString(),
		Type:       itemType,
		Name:       name,
		Properties: make(map[string]interface{}),
		CreatedAt:  time.Now().UTC(),
	}
}

// CreateItem creates a child item parented under this item. The child
// inherits the parent's context unless one is set explicitly later.
func (i *Item) CreateItem(itemType, name string) *Item {
	child := NewItem(itemType, name)
	child.Parent = i
	child.Context = i.Context
	i.children = append(i.children, child)
	return child
}

// Children returns the item's direct children in creation order.
func (i *Item) Children() []*Item {
	return i.children
}

// Property returns a property value and whether it is set.
func (i *Item) Property(key string) (interface{}, bool) {
	v, ok := i.Properties[key]
	return v, ok
}

// SetProperty sets a property on the item.
func (i *Item) SetProperty(key string, value interface{}) {
	if i.Properties == nil {
		i.Properties = make(map[string]interface{})
	}
	i.Properties[key] = value
}

// StringProperty returns a string property, or "" when unset or not a string.
func (i *Item) StringProperty(key string) string {
	if v, ok := i.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IntProperty returns an integer property, or 0 when unset. JSON round-trips
// store numbers as float64, so both forms are accepted.
func (i *Item) IntProperty(key string) int {
	switch v := i.Properties[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// HasProperty reports whether the property is set.
func (i *Item) HasProperty(key string) bool {
	_, ok := i.Properties[key]
	return ok
}

// ThumbnailPath returns the path to the item's thumbnail image, walking up to
// the parent when the item has none of its own.
func (i *Item) ThumbnailPath() string {
	if i.Thumbnail != "" {
		return i.Thumbnail
	}
	if i.Parent != nil {
		return i.Parent.ThumbnailPath()
	}
	return ""
}

// Acceptance is the result of a plugin's Accept pass for an item.
type Acceptance struct {
	// Accepted indicates the plugin is interested in the item at all. A
	// not-accepted item is skipped, not failed.
	Accepted bool `json:"accepted"`
	// Required marks the task as mandatory; it cannot be disabled by the
	// operator.
	Required bool `json:"required"`
	// Enabled controls whether the task starts out enabled.
	Enabled bool `json:"enabled"`
	// Visible controls whether the task is shown at all.
	Visible bool `json:"visible"`
}
