package utils

import "testing"

func TestNormalizeE164(t *testing.T) {
	if got := NormalizeE164("(650) 253-0000", "US"); got != "+16502530000" {
		t.Fatalf("expected +16502530000, got %q", got)
	}
	if got := NormalizeE164("+16502530000", "GB"); got != "+16502530000" {
		t.Fatalf("expected E.164 input kept, got %q", got)
	}
	if got := NormalizeE164("anonymous", "US"); got != "anonymous" {
		t.Fatalf("expected opaque input passthrough, got %q", got)
	}
	if got := NormalizeE164("   ", "US"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
