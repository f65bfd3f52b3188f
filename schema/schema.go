// Package schema has the result model, configs and constants for all parts of flint.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is a named, ordered group of checks. Adding a check with an
// existing name replaces it in place.
type Category struct {
	name   string
	order  []string
	checks map[string]Check
}

// NewCategory creates a category holding the given checks in order.
func NewCategory(name string, checks ...Check) *Category {
	c := &Category{name: name, checks: make(map[string]Check, len(checks))}
	for _, check := range checks {
		c.Add(check)
	}
	return c
}

// Name returns the category name.
func (c *Category) Name() string { return c.name }

// Add inserts or overwrites a check by name.
func (c *Category) Add(check Check) {
	if c.checks == nil {
		c.checks = make(map[string]Check)
	}
	if _, ok := c.checks[check.Name()]; !ok {
		c.order = append(c.order, check.Name())
	}
	c.checks[check.Name()] = check
}

// Get returns the check with the given name.
func (c *Category) Get(name string) (Check, bool) {
	check, ok := c.checks[name]
	return check, ok
}

// Checks returns all checks in insertion order.
func (c *Category) Checks() []Check {
	out := make([]Check, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.checks[name])
	}
	return out
}

// Len returns the number of checks.
func (c *Category) Len() int { return len(c.order) }

// IsErroneous is true when no contained check was evaluated, including the empty case.
func (c *Category) IsErroneous() bool {
	for _, check := range c.checks {
		if !check.IsErroneous() {
			return false
		}
	}
	return true
}

// IsHappy returns nil when erroneous, false when any evaluated check failed, true otherwise.
func (c *Category) IsHappy() *bool {
	if c.IsErroneous() {
		return nil
	}
	for _, check := range c.checks {
		if !check.IsErroneous() && check.Outcome() == Fail {
			return boolPtr(false)
		}
	}
	return boolPtr(true)
}

// Result derives the serialized status, error taking precedence.
func (c *Category) Result() ResultStatus {
	return resultOf(c.IsHappy())
}

func (c *Category) String() string {
	parts := make([]string, 0, len(c.order))
	for _, check := range c.Checks() {
		parts = append(parts, check.String())
	}
	return fmt.Sprintf("%s: %s [%s]", c.name, c.Result(), strings.Join(parts, ", "))
}

type categoryJSON struct {
	Name   string       `json:"name"`
	Result ResultStatus `json:"result"`
	Checks []Check      `json:"checks"`
}

// MarshalJSON implements json.Marshaler.
func (c *Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(categoryJSON{Name: c.name, Result: c.Result(), Checks: c.Checks()})
}

// UnmarshalJSON implements json.Unmarshaler. The stored result is ignored and re-derived.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw categoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = *NewCategory(raw.Name, raw.Checks...)
	return nil
}

// CategoryMap is an ordered mapping of category name to category, as produced by one task.
type CategoryMap struct {
	order      []string
	categories map[string]*Category
}

// NewCategoryMap creates a mapping from the given categories in order.
func NewCategoryMap(categories ...*Category) *CategoryMap {
	m := &CategoryMap{categories: make(map[string]*Category, len(categories))}
	for _, c := range categories {
		m.Put(c)
	}
	return m
}

// Put inserts or replaces a category by name.
func (m *CategoryMap) Put(c *Category) {
	if c == nil {
		return
	}
	if m.categories == nil {
		m.categories = make(map[string]*Category)
	}
	if _, ok := m.categories[c.Name()]; !ok {
		m.order = append(m.order, c.Name())
	}
	m.categories[c.Name()] = c
}

// Get returns the named category.
func (m *CategoryMap) Get(name string) (*Category, bool) {
	if m == nil {
		return nil, false
	}
	c, ok := m.categories[name]
	return c, ok
}

// Names returns the category names in order.
func (m *CategoryMap) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// Categories returns the categories in order.
func (m *CategoryMap) Categories() []*Category {
	if m == nil {
		return nil
	}
	out := make([]*Category, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.categories[name])
	}
	return out
}

// Len returns the number of categories.
func (m *CategoryMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// MarshalJSON implements json.Marshaler.
func (m *CategoryMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Categories())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *CategoryMap) UnmarshalJSON(data []byte) error {
	var cats []*Category
	if err := json.Unmarshal(data, &cats); err != nil {
		return err
	}
	*m = *NewCategoryMap(cats...)
	return nil
}

func resultOf(happy *bool) ResultStatus {
	switch {
	case happy == nil:
		return ErrorResult
	case *happy:
		return PassedResult
	default:
		return FailedResult
	}
}
