// Package catalog holds the static brochure catalog and delivery-time
// validation of asset descriptors.
package catalog

import (
	"errors"
	"fmt"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

var (
	// ErrNotFound is returned when no descriptor exists for a key.
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidDescriptor is returned when a descriptor is a placeholder or
	// otherwise unusable. Checked at delivery time so unfinished catalog
	// entries do not break startup.
	ErrInvalidDescriptor = errors.New("invalid asset descriptor")
)

// minExternalIDLen is the shortest plausible Drive file ID. Placeholder
// entries like "TU_ID_WEB" are shorter or empty.
const minExternalIDLen = 10

// RequestMarker is the token that, together with a catalog key, signals an
// asset request ("brochure legal").
const RequestMarker = "brochure"

// Catalog is an immutable key -> descriptor mapping with a stable match
// order. When a message mentions several area names the first declared
// entry wins; this precedence is deliberate, not incidental.
type Catalog struct {
	order   []string
	entries map[string]domain.AssetDescriptor
}

// Default returns the built-in brochure catalog.
func Default() *Catalog {
	return New([]domain.AssetDescriptor{
		{
			Key:        "contable",
			ExternalID: "184wOk8NESI1YOMxHyq7kVO6_RA39xPgM",
			Filename:   "brochure-contable.pdf",
			Caption:    "📊 Aquí tienes el brochure del área Contable.",
		},
		{
			Key:        "legal",
			ExternalID: "1gXgh7ugCEC3l4JvbadhrPiwQMDZCuTvB",
			Filename:   "brochure-legal.pdf",
			Caption:    "⚖️ Aquí tienes el brochure del área Legal.",
		},
		{
			Key:        "branding",
			ExternalID: "TU_ID_BRANDING",
			Filename:   "brochure-branding.pdf",
			Caption:    "🎨 Aquí tienes el brochure del área de Branding.",
		},
		{
			Key:        "página web",
			ExternalID: "TU_ID_WEB",
			Filename:   "brochure-pagina-web.pdf",
			Caption:    "💻 Aquí tienes el brochure del servicio de Página Web (TI).",
		},
		{
			Key:        "gestión humana",
			ExternalID: "TU_ID_GH",
			Filename:   "brochure-gestion-humana.pdf",
			Caption:    "👥 Aquí tienes el brochure del área de Gestión Humana.",
		},
	})
}

// New builds a catalog preserving the declaration order of entries.
func New(descriptors []domain.AssetDescriptor) *Catalog {
	c := &Catalog{entries: make(map[string]domain.AssetDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := c.entries[d.Key]; dup {
			continue
		}
		c.order = append(c.order, d.Key)
		c.entries[d.Key] = d
	}
	return c
}

// Keys returns catalog keys in match-precedence order.
func (c *Catalog) Keys() []string {
	return c.order
}

// Resolve returns the descriptor for key, or ErrNotFound.
func (c *Catalog) Resolve(key string) (domain.AssetDescriptor, error) {
	d, ok := c.entries[key]
	if !ok {
		return domain.AssetDescriptor{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return d, nil
}

// Validate checks that a descriptor is deliverable.
func Validate(d domain.AssetDescriptor) error {
	if d.ExternalID == "" {
		return fmt.Errorf("%w: empty external id for %q", ErrInvalidDescriptor, d.Key)
	}
	if len(d.ExternalID) < minExternalIDLen {
		return fmt.Errorf("%w: external id %q too short for %q", ErrInvalidDescriptor, d.ExternalID, d.Key)
	}
	return nil
}

// DownloadURL builds the direct-download link for a descriptor.
func DownloadURL(d domain.AssetDescriptor) string {
	return "https://drive.google.com/uc?export=download&id=" + d.ExternalID
}
