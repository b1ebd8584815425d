package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/solvia-digital/whatsflow/internal/domain"
)

func TestResolveKnownKey(t *testing.T) {
	t.Parallel()

	c := Default()
	d, err := c.Resolve("legal")
	if err != nil {
		t.Fatalf("Resolve(legal) failed: %v", err)
	}
	if d.Filename != "brochure-legal.pdf" {
		t.Fatalf("unexpected filename %q", d.Filename)
	}
}

func TestResolveUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := Default().Resolve("marketing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		externalID string
		wantErr    bool
	}{
		{"valid drive id", "1gXgh7ugCEC3l4JvbadhrPiwQMDZCuTvB", false},
		{"empty id", "", true},
		{"short placeholder", "TU_ID_WEB", true},
		{"exactly minimum length", "abcdefghij", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(domain.AssetDescriptor{Key: "x", ExternalID: tt.externalID})
			if tt.wantErr && !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestKeysPreserveDeclarationOrder(t *testing.T) {
	t.Parallel()

	keys := Default().Keys()
	if len(keys) != 5 {
		t.Fatalf("expected 5 catalog keys, got %d", len(keys))
	}
	if keys[0] != "contable" || keys[1] != "legal" {
		t.Fatalf("declaration order not preserved: %v", keys)
	}
}

func TestDownloadURL(t *testing.T) {
	t.Parallel()

	d := domain.AssetDescriptor{ExternalID: "abc123defg"}
	url := DownloadURL(d)
	if !strings.HasSuffix(url, "id=abc123defg") {
		t.Fatalf("unexpected url %q", url)
	}
}
