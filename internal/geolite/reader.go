// Package geolite looks addresses up in a local MaxMind GeoLite2 Country
// database. The CLI uses it to compare registry attribution with GeoLite.
package geolite

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

var ErrNoDatabase = errors.New("geolite: country database path is not configured")

type Reader struct {
	mu sync.RWMutex
	db *geoip2.Reader
}

// Open reads the mmdb file at path into memory.
func Open(path string) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoDatabase
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: read %s: %w", path, err)
	}
	return FromBytes(data)
}

func FromBytes(data []byte) (*Reader, error) {
	db, err := geoip2.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("geolite: load database: %w", err)
	}
	return &Reader{db: db}, nil
}

// CountryCode returns the upper case ISO code GeoLite assigns to ip.
func (r *Reader) CountryCode(ip string) (string, bool) {
	if r == nil {
		return "", false
	}
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return "", false
	}

	record, err := r.db.Country(addr)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return strings.ToUpper(record.Country.IsoCode), true
}

func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
