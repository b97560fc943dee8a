package enums

import "fmt"

// ServiceClassification is the closed set of pricing classes for catalog
// services. It is a schema column resolved at catalog load time, never
// inferred from the service name while pricing.
type ServiceClassification string

const (
	// ServiceClassEntitlement units count against the plan allowance and
	// may be covered for free.
	ServiceClassEntitlement ServiceClassification = "entitlement"
	// ServiceClassExtra units are priced per unit and are never covered.
	ServiceClassExtra ServiceClassification = "extra"
	// ServiceClassAddon services are pure add-ons, always charged.
	ServiceClassAddon ServiceClassification = "addon"
)

var validServiceClassifications = []ServiceClassification{
	ServiceClassEntitlement,
	ServiceClassExtra,
	ServiceClassAddon,
}

// String implements fmt.Stringer.
func (s ServiceClassification) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ServiceClassification.
func (s ServiceClassification) IsValid() bool {
	for _, candidate := range validServiceClassifications {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsAgainstAllowance reports whether units of this class consume the
// subscription's bag entitlement.
func (s ServiceClassification) CountsAgainstAllowance() bool {
	return s == ServiceClassEntitlement
}

// ParseServiceClassification converts the raw string to ServiceClassification.
func ParseServiceClassification(value string) (ServiceClassification, error) {
	for _, candidate := range validServiceClassifications {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service classification %q", value)
}
