package support

import (
	"strings"

	"github.com/asaskevich/govalidator"
)

// AddressValidator reports whether a literal is a syntactically valid address
// of the given family.
type AddressValidator interface {
	IsValidIPv4(address string) bool
	IsValidIPv6(address string) bool
}

type literalValidator struct{}

// DefaultAddressValidator accepts the literal forms govalidator accepts.
var DefaultAddressValidator AddressValidator = literalValidator{}

// IsValidIPv4 accepts dotted quads only. IPv4-mapped IPv6 literals contain a
// dot too, but they are IPv6 syntax.
func (literalValidator) IsValidIPv4(address string) bool {
	return !strings.Contains(address, ":") && govalidator.IsIPv4(address)
}

func (literalValidator) IsValidIPv6(address string) bool {
	return govalidator.IsIPv6(address)
}

// IsValidAddress reports whether either family accepts the literal.
func IsValidAddress(v AddressValidator, address string) bool {
	return v.IsValidIPv4(address) || v.IsValidIPv6(address)
}
