package index

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/yl2chen/cidranger"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

// IPv6 indexes base/prefixLength networks by country.
type IPv6 struct {
	mu     sync.RWMutex
	blocks map[domain.IPv6Block]struct{}
	ranger cidranger.Ranger
}

func NewIPv6() *IPv6 {
	return &IPv6{
		blocks: make(map[domain.IPv6Block]struct{}),
		ranger: cidranger.NewPCTrieRanger(),
	}
}

// Add registers block. Re-adding an identical tuple is a no-op and reports
// false.
func (x *IPv6) Add(block domain.IPv6Block) (bool, error) {
	prefix, err := ipv6Prefix(block)
	if err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, found := x.blocks[block]; found {
		return false, nil
	}
	if err := x.ranger.Insert(newCountryEntry(prefix, block.CountryCode)); err != nil {
		return false, fmt.Errorf("index: insert %s: %w", prefix, err)
	}
	x.blocks[block] = struct{}{}
	return true, nil
}

// Contains reports whether the top prefixLength bits of address equal those of
// any registered network.
func (x *IPv6) Contains(address string) bool {
	_, found := x.Lookup(address)
	return found
}

// CountryOf returns the country of the network covering address, or
// domain.UnknownCountry.
func (x *IPv6) CountryOf(address string) string {
	if country, found := x.Lookup(address); found {
		return country
	}
	return domain.UnknownCountry
}

// Len returns the number of distinct registered blocks.
func (x *IPv6) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.blocks)
}

// Lookup returns the country of the block covering address.
func (x *IPv6) Lookup(address string) (string, bool) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is6() || addr.Is4In6() {
		return "", false
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	return lookup(x.ranger, addr.WithZone(""))
}

func ipv6Prefix(block domain.IPv6Block) (netip.Prefix, error) {
	base, err := netip.ParseAddr(block.Base)
	if err != nil || !base.Is6() || base.Is4In6() {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidAddress, block.Base)
	}
	if block.PrefixLength < 0 || block.PrefixLength > 128 {
		return netip.Prefix{}, fmt.Errorf("%w: /%d", ErrInvalidSize, block.PrefixLength)
	}
	return netip.PrefixFrom(base.WithZone(""), block.PrefixLength).Masked(), nil
}
