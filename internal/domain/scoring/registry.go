package scoring

// Resolver picks the schema that applies to observations from a given year.
type Resolver interface {
	ForYear(year int) *Schema
}

// Registry resolves schemas by game year with a fallback for unknown years.
// It is read-only after construction.
type Registry struct {
	fallback *Schema
	byYear   map[int]*Schema
}

// NewRegistry indexes schemas by their Year. The fallback also serves its
// own year unless another schema claims it.
func NewRegistry(fallback *Schema, others ...*Schema) *Registry {
	r := &Registry{fallback: fallback, byYear: make(map[int]*Schema)}
	if fallback != nil && fallback.Year != 0 {
		r.byYear[fallback.Year] = fallback
	}
	for _, s := range others {
		if s != nil && s.Year != 0 {
			r.byYear[s.Year] = s
		}
	}
	return r
}

// DefaultRegistry returns a registry over the embedded schemas.
func DefaultRegistry() (*Registry, error) {
	all, err := Defaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(all[0], all[1:]...), nil
}

// ForYear returns the schema registered for year, or the fallback.
func (r *Registry) ForYear(year int) *Schema {
	if s, ok := r.byYear[year]; ok {
		return s
	}
	return r.fallback
}

// Years reports how many distinct years have a dedicated schema.
func (r *Registry) Years() int {
	return len(r.byYear)
}
