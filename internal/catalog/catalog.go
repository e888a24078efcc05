package catalog

import (
	"fmt"

	"bookcal/internal/models"
)

const defaultColor = "#6B7280"

// Catalog is the immutable apartment lookup table. It is built once
// from configuration at startup and never mutated afterwards.
type Catalog struct {
	ordered []models.Apartment
	byID    map[string]models.Apartment
}

func New(apartments []models.Apartment) (*Catalog, error) {
	c := &Catalog{
		ordered: append([]models.Apartment(nil), apartments...),
		byID:    make(map[string]models.Apartment, len(apartments)),
	}
	for _, apt := range apartments {
		if apt.ID == "" {
			return nil, fmt.Errorf("apartment %q has empty id", apt.Name)
		}
		if _, dup := c.byID[apt.ID]; dup {
			return nil, fmt.Errorf("duplicate apartment id: %s", apt.ID)
		}
		c.byID[apt.ID] = apt
	}
	return c, nil
}

// List returns the apartments in configuration order.
func (c *Catalog) List() []models.Apartment {
	return append([]models.Apartment(nil), c.ordered...)
}

func (c *Catalog) ByID(id string) (models.Apartment, bool) {
	apt, ok := c.byID[id]
	return apt, ok
}

// Color returns the display color for an apartment, falling back to a
// neutral gray for unknown ids.
func (c *Catalog) Color(id string) string {
	if apt, ok := c.byID[id]; ok && apt.Color != "" {
		return apt.Color
	}
	return defaultColor
}

func (c *Catalog) Len() int {
	return len(c.ordered)
}
