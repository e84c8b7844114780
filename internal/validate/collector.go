package validate

import (
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

// Collector accumulates field errors across many keys so a caller can
// report every problem at once instead of failing on the first.
type Collector struct {
	cat    *catalog.Catalog
	fields model.FieldErrors
}

// NewCollector returns an empty collector bound to cat.
func NewCollector(cat *catalog.Catalog) *Collector {
	return &Collector{cat: cat, fields: model.FieldErrors{}}
}

// Check validates one key. Unknown keys are recorded as NotFound.
func (c *Collector) Check(key string, mode catalog.Mode, v model.Value, rng *catalog.Bounds) {
	def, err := c.cat.Lookup(key)
	if err != nil {
		c.Add(key, model.FieldError(model.KindNotFound, key, "unknown constraint key", ""))
		return
	}
	for _, e := range Check(def, mode, v, rng) {
		c.fields.Add(key, e)
	}
}

// Add records an error raised outside the rule set.
func (c *Collector) Add(key string, err *model.Error) {
	c.fields.Add(key, err)
}

// Fields returns the accumulated per-key errors.
func (c *Collector) Fields() model.FieldErrors { return c.fields }

// Err folds the accumulated errors into one, or returns nil.
func (c *Collector) Err() error {
	if e := model.FromFields(c.fields); e != nil {
		return e
	}
	return nil
}
