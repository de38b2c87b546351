package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactSecrets(t *testing.T) {
	key := "AIza" + strings.Repeat("x", 35)
	out, changed := Redact("my key is " + key + " ok")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if strings.Contains(out, key) || !strings.Contains(out, "[REDACTED_KEY]") {
		t.Fatalf("Redact() = %q, want key masked", out)
	}

	plain := "Goodwill is 2 years purchase of average profits."
	if out, changed := Redact(plain); changed || out != plain {
		t.Fatalf("Redact(%q) = %q, %v; want unchanged", plain, out, changed)
	}
}
