package credential

import (
	"fmt"
	"unicode"
)

// PolicyViolation names the first unmet password rule. Rule is one of
// "length", "uppercase", "lowercase", "digit", "symbol".
type PolicyViolation struct {
	Rule string
}

func (e *PolicyViolation) Error() string {
	if e.Rule == "length" {
		return "password policy violation: below minimum length"
	}
	return fmt.Sprintf("password policy violation: missing %s character", e.Rule)
}

// Policy holds the complexity requirements applied to every new password.
type Policy struct {
	MinLength int
}

// Strength reports which rules a candidate satisfies. Used for the
// real-time feedback endpoint; it never touches stored state.
type Strength struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Digit     bool `json:"digit"`
	Symbol    bool `json:"symbol"`
}

// Satisfied reports whether every rule is met.
func (s Strength) Satisfied() bool {
	return s.Length && s.Uppercase && s.Lowercase && s.Digit && s.Symbol
}

// Inspect evaluates all rules against the candidate.
func (p Policy) Inspect(candidate string) Strength {
	s := Strength{Length: len([]rune(candidate)) >= p.MinLength}
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			s.Uppercase = true
		case unicode.IsLower(r):
			s.Lowercase = true
		case unicode.IsDigit(r):
			s.Digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			s.Symbol = true
		}
	}
	return s
}

// Validate returns the first unmet rule as a *PolicyViolation, or nil when
// the candidate is acceptable.
func (p Policy) Validate(candidate string) error {
	s := p.Inspect(candidate)
	switch {
	case !s.Length:
		return &PolicyViolation{Rule: "length"}
	case !s.Uppercase:
		return &PolicyViolation{Rule: "uppercase"}
	case !s.Lowercase:
		return &PolicyViolation{Rule: "lowercase"}
	case !s.Digit:
		return &PolicyViolation{Rule: "digit"}
	case !s.Symbol:
		return &PolicyViolation{Rule: "symbol"}
	}
	return nil
}
