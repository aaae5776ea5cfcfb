package authz

import (
	"testing"

	"github.com/psharma/securenotes/internal/server/models"
)

func TestSatisfies_Matrix(t *testing.T) {
	tests := []struct {
		name       string
		tier       models.Tier
		staff      bool
		capability Capability
		want       bool
	}{
		{"free holds free", models.TierFree, false, CapabilityFreeOnly, true},
		{"free denied pro", models.TierFree, false, CapabilityProOrAbove, false},
		{"free denied enterprise", models.TierFree, false, CapabilityEnterpriseOnly, false},
		{"pro holds free", models.TierPro, false, CapabilityFreeOnly, true},
		{"pro holds pro", models.TierPro, false, CapabilityProOrAbove, true},
		{"pro denied enterprise", models.TierPro, false, CapabilityEnterpriseOnly, false},
		{"enterprise holds everything", models.TierEnterprise, false, CapabilityEnterpriseOnly, true},
		{"enterprise holds pro", models.TierEnterprise, false, CapabilityProOrAbove, true},
		{"staff bit independent of tier", models.TierFree, true, CapabilityStaff, true},
		{"enterprise without staff bit denied staff", models.TierEnterprise, false, CapabilityStaff, false},
		{"corrupted tier denied even free", models.Tier("GOLD"), false, CapabilityFreeOnly, false},
		{"unknown capability denied", models.TierEnterprise, true, Capability("ROOT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Satisfies(tt.tier, tt.staff, tt.capability); got != tt.want {
				t.Fatalf("Satisfies(%s, %v, %s) = %v, want %v", tt.tier, tt.staff, tt.capability, got, tt.want)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	if _, err := ParseCapability("PRO_OR_ABOVE"); err != nil {
		t.Fatalf("ParseCapability error: %v", err)
	}
	if _, err := ParseCapability("pro_or_above"); err == nil {
		t.Fatal("lowercase capability must be rejected")
	}
	if _, err := ParseCapability(""); err == nil {
		t.Fatal("empty capability must be rejected")
	}
}

func TestParseResourceKind(t *testing.T) {
	for _, valid := range []string{"NOTE_COUNT", "UPLOAD_SIZE_MB", "API_CALL"} {
		if _, err := ParseResourceKind(valid); err != nil {
			t.Fatalf("ParseResourceKind(%q) error: %v", valid, err)
		}
	}
	if _, err := ParseResourceKind("DISK"); err == nil {
		t.Fatal("unknown resource kind must be rejected")
	}
}
