// ABOUTME: Tests for version constants
// ABOUTME: Checks the values used in logs and service advertisements
package version

import (
	"strings"
	"testing"
)

func TestVersionIsSemver(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("Version %q is not major.minor.patch", Version)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			t.Errorf("Version %q has non-numeric part %q", Version, p)
		}
	}
}

func TestProductIsServiceSafe(t *testing.T) {
	// Product becomes part of the mDNS service type
	if Product == "" || strings.ContainsAny(Product, " ._") {
		t.Errorf("Product %q cannot be used in a service name", Product)
	}
	if Manufacturer == "" {
		t.Error("Manufacturer should not be empty")
	}
}
