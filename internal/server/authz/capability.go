package authz

import "fmt"

// Capability is a closed permission predicate evaluated against a
// principal's tier and staff status. Adding one is a controlled enum
// change, not an open-ended hierarchy.
type Capability string

const (
	CapabilityFreeOnly       Capability = "FREE_ONLY"
	CapabilityProOrAbove     Capability = "PRO_OR_ABOVE"
	CapabilityEnterpriseOnly Capability = "ENTERPRISE_ONLY"
	CapabilityStaff          Capability = "STAFF"
)

// ParseCapability validates a wire value against the closed set.
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapabilityFreeOnly, CapabilityProOrAbove, CapabilityEnterpriseOnly, CapabilityStaff:
		return Capability(s), nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}
