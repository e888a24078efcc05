package models

// Apartment is one rentable unit in the manager's portfolio. The list
// comes from configuration and is fixed for the lifetime of the process.
type Apartment struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	MaxGuests   int    `yaml:"max_guests" json:"maxGuests"`
	Color       string `yaml:"color" json:"color,omitempty"`
}
