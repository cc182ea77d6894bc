package protocol

import (
	_ "embed"
	"fmt"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// DefaultCatalog parses the catalog compiled into the binary. The embedded
// corpus is the fallback when no catalog path is configured, so the service
// always has a working protocol set.
func DefaultCatalog() (*Catalog, error) {
	c, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog is invalid: %w", err)
	}
	return c, nil
}
