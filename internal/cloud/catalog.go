package cloud

// Catalog is the ordered, immutable list of archetypes available to a run.
//
// All selections scan in catalog order and keep the first element on ties, so
// the result never depends on map iteration or sort instability.
type Catalog struct {
	types []*VMType
	byID  map[int]*VMType
}

// NewCatalog validates and wraps the given archetypes. Order is preserved.
func NewCatalog(types ...*VMType) (*Catalog, error) {
	if len(types) == 0 {
		return nil, invalidf("no vm types")
	}
	byID := make(map[int]*VMType, len(types))
	for _, t := range types {
		if t == nil {
			return nil, invalidf("nil vm type")
		}
		if _, exists := byID[t.ID]; exists {
			return nil, invalidf("duplicate vm type id %d", t.ID)
		}
		byID[t.ID] = t
	}
	out := make([]*VMType, len(types))
	copy(out, types)
	return &Catalog{types: out, byID: byID}, nil
}

// Types returns the archetypes in catalog order.
func (c *Catalog) Types() []*VMType {
	out := make([]*VMType, len(c.types))
	copy(out, c.types)
	return out
}

// Type looks up an archetype by id.
func (c *Catalog) Type(id int) (*VMType, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Len returns the number of archetypes.
func (c *Catalog) Len() int { return len(c.types) }

// Fastest returns the archetype with the highest top speed.
func (c *Catalog) Fastest() *VMType {
	return c.pick(func(cand, best *VMType) bool { return cand.MaxSpeed() > best.MaxSpeed() })
}

// Cheapest returns the archetype with the lowest cost per unit of top speed.
func (c *Catalog) Cheapest() *VMType {
	return c.pick(func(cand, best *VMType) bool { return cand.CostSpeedRatio() < best.CostSpeedRatio() })
}

// Costliest returns the archetype with the highest cost per unit of top speed.
func (c *Catalog) Costliest() *VMType {
	return c.pick(func(cand, best *VMType) bool { return cand.CostSpeedRatio() > best.CostSpeedRatio() })
}

// pick keeps the current best unless better strictly beats it.
func (c *Catalog) pick(better func(cand, best *VMType) bool) *VMType {
	best := c.types[0]
	for _, t := range c.types[1:] {
		if better(t, best) {
			best = t
		}
	}
	return best
}
