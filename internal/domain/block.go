package domain

import (
	"math"
	"strconv"
)

// Block is the closed set {IPv4Block, IPv6Block}. Both variants are comparable
// value types, so equality and map hashing cover the full field tuple.
type Block interface {
	BaseAddress() string
	Country() string
	isBlock()
}

// IPv4Block is an IPv4 delegation: AddressCount addresses starting at Base.
type IPv4Block struct {
	Base         string
	AddressCount uint64
	CountryCode  string
}

func (b IPv4Block) BaseAddress() string { return b.Base }
func (b IPv4Block) Country() string     { return b.CountryCode }
func (IPv4Block) isBlock()              {}

// PrefixLength returns 32 - ceil(log2(AddressCount)). The result only describes
// the block exactly when AddressCount is a power of two; registries do publish
// other counts and those are reported as-is, not rounded into shape.
func (b IPv4Block) PrefixLength() int {
	if b.AddressCount == 0 {
		return -1
	}
	return 32 - int(math.Ceil(math.Log2(float64(b.AddressCount))))
}

// CIDR renders Base/PrefixLength, or "" for an empty block.
func (b IPv4Block) CIDR() string {
	if b.Base == "" || b.AddressCount == 0 {
		return ""
	}
	return b.Base + "/" + strconv.Itoa(b.PrefixLength())
}

// IPv6Block is an IPv6 delegation expressed as Base/PrefixLength.
type IPv6Block struct {
	Base         string
	PrefixLength int
	CountryCode  string
}

func (b IPv6Block) BaseAddress() string { return b.Base }
func (b IPv6Block) Country() string     { return b.CountryCode }
func (IPv6Block) isBlock()              {}

func (b IPv6Block) CIDR() string {
	return b.Base + "/" + strconv.Itoa(b.PrefixLength)
}
