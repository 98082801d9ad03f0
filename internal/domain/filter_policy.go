package domain

import (
	"fmt"
	"strings"
)

// UnknownCountry is returned when no registered block covers an address.
const UnknownCountry = "Unknown"

// FilterPolicy decides how raw index membership maps to a match result.
type FilterPolicy int

const (
	// IncludeCountryCodes: membership in the selected countries is a match.
	IncludeCountryCodes FilterPolicy = iota
	// ExcludeCountryCodes: membership in the selected countries is not a match.
	ExcludeCountryCodes
)

func (p FilterPolicy) String() string {
	switch p {
	case IncludeCountryCodes:
		return "include"
	case ExcludeCountryCodes:
		return "exclude"
	default:
		return fmt.Sprintf("FilterPolicy(%d)", int(p))
	}
}

// Apply turns a membership result into a match result.
func (p FilterPolicy) Apply(member bool) bool {
	return member == (p == IncludeCountryCodes)
}

// ParseFilterPolicy accepts "include"/"exclude" in any case.
func ParseFilterPolicy(raw string) (FilterPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "include":
		return IncludeCountryCodes, nil
	case "exclude":
		return ExcludeCountryCodes, nil
	default:
		return 0, fmt.Errorf("domain: unknown filter policy %q", raw)
	}
}

// QueryConfig is the caller-selected query behaviour of a Checker.
type QueryConfig struct {
	Countries           []string
	Policy              FilterPolicy
	IncludeIPv4Loopback bool
	IncludeIPv6Loopback bool
}

// DefaultQueryConfig mirrors the defaults of the delegation checker: include
// policy with both loopback entries enabled.
func DefaultQueryConfig(countries []string) QueryConfig {
	return QueryConfig{
		Countries:           append([]string(nil), countries...),
		Policy:              IncludeCountryCodes,
		IncludeIPv4Loopback: true,
		IncludeIPv6Loopback: true,
	}
}
