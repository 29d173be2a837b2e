package taxonomy

// Registry exposes category lookups. Lookups never fail.
type Registry interface {
	List() []Category
	FindByKey(key string) (Category, bool)
	Describe(key string) Category
}

// MemoryRegistry implements Registry over an immutable slice.
type MemoryRegistry struct {
	items    []Category
	fallback Category
}

// NewMemoryRegistry returns a registry over the supplied categories. The
// category keyed DefaultKey becomes the fallback; when absent the first item
// is used, and an empty list falls back to a bare general category.
func NewMemoryRegistry(items []Category) *MemoryRegistry {
	r := &MemoryRegistry{items: append([]Category(nil), items...)}
	if c, ok := r.FindByKey(DefaultKey); ok {
		r.fallback = c
	} else if len(r.items) > 0 {
		r.fallback = r.items[0]
	} else {
		r.fallback = Category{Key: DefaultKey, Label: "General Math"}
	}
	return r
}

// List returns the categories in declaration order.
func (r *MemoryRegistry) List() []Category {
	return append([]Category(nil), r.items...)
}

// FindByKey looks up a category by key.
func (r *MemoryRegistry) FindByKey(key string) (Category, bool) {
	for _, item := range r.items {
		if item.Key == key {
			return item, true
		}
	}
	return Category{}, false
}

// Describe returns the category for key, or the fallback category when key
// is empty or unknown.
func (r *MemoryRegistry) Describe(key string) Category {
	if c, ok := r.FindByKey(key); ok {
		return c
	}
	return r.fallback
}

// Fallback returns the designated default category.
func (r *MemoryRegistry) Fallback() Category {
	return r.fallback
}

// Known reports whether key names a registered category.
func (r *MemoryRegistry) Known(key string) bool {
	_, ok := r.FindByKey(key)
	return ok
}
