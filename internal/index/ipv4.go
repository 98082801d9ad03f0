package index

import (
	"fmt"
	"math"
	"net/netip"
	"sync"

	"github.com/yl2chen/cidranger"
	"go4.org/netipx"

	"github.com/jfs415/ip2asn2cc/internal/domain"
)

// IPv4 indexes [base, base+count-1] ranges by country.
//
// A range whose count is not a power of two is decomposed into the exact set of
// prefixes covering it, so lookups match the published range and not the
// rounded CIDR reported by domain.IPv4Block.CIDR.
type IPv4 struct {
	mu     sync.RWMutex
	blocks map[domain.IPv4Block]struct{}
	ranger cidranger.Ranger
}

func NewIPv4() *IPv4 {
	return &IPv4{
		blocks: make(map[domain.IPv4Block]struct{}),
		ranger: cidranger.NewPCTrieRanger(),
	}
}

// Add registers block. Re-adding an identical tuple is a no-op and reports
// false.
func (x *IPv4) Add(block domain.IPv4Block) (bool, error) {
	r, err := ipv4Range(block)
	if err != nil {
		return false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, found := x.blocks[block]; found {
		return false, nil
	}
	for _, prefix := range r.Prefixes() {
		if err := x.ranger.Insert(newCountryEntry(prefix, block.CountryCode)); err != nil {
			return false, fmt.Errorf("index: insert %s: %w", prefix, err)
		}
	}
	x.blocks[block] = struct{}{}
	return true, nil
}

// Contains reports whether any registered range covers address.
func (x *IPv4) Contains(address string) bool {
	_, found := x.Lookup(address)
	return found
}

// CountryOf returns the country of the range covering address, or
// domain.UnknownCountry.
func (x *IPv4) CountryOf(address string) string {
	if country, found := x.Lookup(address); found {
		return country
	}
	return domain.UnknownCountry
}

// Len returns the number of distinct registered blocks.
func (x *IPv4) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.blocks)
}

// Lookup returns the country of the block covering address. Only dotted quad
// literals are answered; IPv4-mapped IPv6 forms such as ::ffff:8.8.8.8 are not.
func (x *IPv4) Lookup(address string) (string, bool) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return "", false
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	return lookup(x.ranger, addr)
}

func ipv4Range(block domain.IPv4Block) (netipx.IPRange, error) {
	base, err := netip.ParseAddr(block.Base)
	if err != nil || !base.Is4() {
		return netipx.IPRange{}, fmt.Errorf("%w: %q", ErrInvalidAddress, block.Base)
	}

	first := ipv4ToUint32(base)
	if block.AddressCount == 0 || uint64(first)+block.AddressCount-1 > math.MaxUint32 {
		return netipx.IPRange{}, fmt.Errorf("%w: %s + %d", ErrInvalidSize, block.Base, block.AddressCount)
	}

	last := uint32ToIPv4(first + uint32(block.AddressCount-1))
	return netipx.IPRangeFrom(base, last), nil
}

func ipv4ToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToIPv4(u uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}
