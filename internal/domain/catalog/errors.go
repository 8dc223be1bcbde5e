package catalog

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrConfigurationMissing means no catalog could be read. Fatal at startup.
	ErrConfigurationMissing = errors.New("action catalog missing")
	// ErrInvalidCatalog means the catalog was read but is inconsistent.
	ErrInvalidCatalog = errors.New("invalid action catalog")
)
