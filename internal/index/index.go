// Package index holds the in-memory membership indices built from delegation
// records: IPv4 ranges, IPv6 prefixes and ASN identifiers.
//
// All indices accept concurrent Add calls while ingestion runs and concurrent
// lookups afterwards.
package index

import (
	"errors"
	"net"
	"net/netip"

	"github.com/yl2chen/cidranger"
	"go4.org/netipx"
)

var (
	// ErrInvalidAddress is returned when a block's base is not an address of
	// the index family.
	ErrInvalidAddress = errors.New("index: invalid base address")

	// ErrInvalidSize is returned for empty, oversized or out-of-range blocks.
	ErrInvalidSize = errors.New("index: invalid block size")
)

// countryEntry is a trie leaf tagged with the country of the block it came from.
type countryEntry struct {
	network net.IPNet
	country string
}

func (e *countryEntry) Network() net.IPNet {
	return e.network
}

func newCountryEntry(prefix netip.Prefix, country string) cidranger.RangerEntry {
	return &countryEntry{network: *netipx.PrefixIPNet(prefix), country: country}
}

// lookup returns the country of a trie entry covering addr. Registry data does
// not overlap; when entries do, the most specific one is reported.
func lookup(ranger cidranger.Ranger, addr netip.Addr) (string, bool) {
	entries, err := ranger.ContainingNetworks(net.IP(addr.AsSlice()))
	if err != nil {
		return "", false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if ce, ok := entries[i].(*countryEntry); ok {
			return ce.country, true
		}
	}
	return "", false
}
