package credential

import (
	"errors"
	"testing"
)

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MinLength: 12}

	tests := []struct {
		name     string
		password string
		wantRule string
	}{
		{"ok", "Str0ng&Enough!", ""},
		{"too short", "Sh0rt!", "length"},
		{"no uppercase", "all-lower-cas3!!", "uppercase"},
		{"no lowercase", "ALL-UPPER-CAS3!!", "lowercase"},
		{"no digit", "NoDigitsHere!!!!", "digit"},
		{"no symbol", "NoSymbolsHere123", "symbol"},
		{"unicode length counts runes", "Дл1нныйПароль!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.password)
			if tt.wantRule == "" {
				if err != nil {
					t.Fatalf("Validate(%q) error: %v", tt.password, err)
				}
				return
			}
			var violation *PolicyViolation
			if !errors.As(err, &violation) {
				t.Fatalf("want PolicyViolation, got %v", err)
			}
			if violation.Rule != tt.wantRule {
				t.Fatalf("want rule %q, got %q", tt.wantRule, violation.Rule)
			}
		})
	}
}

func TestPolicy_Inspect(t *testing.T) {
	p := Policy{MinLength: 12}

	s := p.Inspect("weak")
	if s.Satisfied() {
		t.Fatal("weak password must not satisfy all rules")
	}
	if !s.Lowercase || s.Uppercase || s.Digit || s.Symbol || s.Length {
		t.Fatalf("unexpected rule report: %+v", s)
	}

	s = p.Inspect("Str0ng&Enough!")
	if !s.Satisfied() {
		t.Fatalf("expected all rules met, got %+v", s)
	}
}
