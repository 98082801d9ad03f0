package domain

import "strings"

// Family is the resource type column of a delegation line.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
	FamilyASN  Family = "asn"
)

// ParseFamily maps the textual family column to a Family, case-insensitively.
func ParseFamily(raw string) (Family, bool) {
	switch Family(strings.ToLower(raw)) {
	case FamilyIPv4:
		return FamilyIPv4, true
	case FamilyIPv6:
		return FamilyIPv6, true
	case FamilyASN:
		return FamilyASN, true
	default:
		return "", false
	}
}

// DelegationRecord is one matched line of an RIR delegation statistics file.
// It lives only between the parser and the index that absorbs it.
type DelegationRecord struct {
	Registry    string
	Family      Family
	Key         string // start address or ASN, verbatim
	CountryCode string
	Size        uint64 // address count for ipv4, prefix length for ipv6, ASN count for asn
	Date        string
	Status      string
}

// Block converts an address record into its index entry. ASN records have no
// block form.
func (r DelegationRecord) Block() (Block, bool) {
	switch r.Family {
	case FamilyIPv4:
		return IPv4Block{Base: r.Key, AddressCount: r.Size, CountryCode: r.CountryCode}, true
	case FamilyIPv6:
		return IPv6Block{Base: r.Key, PrefixLength: int(r.Size), CountryCode: r.CountryCode}, true
	default:
		return nil, false
	}
}
