package index

import "sync"

// ASN is a set of ASN identifiers kept exactly as they appear in the source
// data. "3356" and "AS3356" or "03356" are different members.
type ASN struct {
	mu   sync.RWMutex
	asns map[string]struct{}
}

func NewASN() *ASN {
	return &ASN{asns: make(map[string]struct{})}
}

// Add inserts asn and reports whether it was new.
func (x *ASN) Add(asn string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, found := x.asns[asn]; found {
		return false
	}
	x.asns[asn] = struct{}{}
	return true
}

func (x *ASN) Contains(asn string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, found := x.asns[asn]
	return found
}

func (x *ASN) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.asns)
}
