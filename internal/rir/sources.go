// Package rir fetches and parses the delegation statistics files published by
// the five Regional Internet Registries.
//
// Every file uses the exchange format
//
//	registry|cc|type|start|value|date|status[|extensions...]
//
// described at https://www.apnic.net/about-apnic/corporate-documents/documents/resource-guidelines/rir-statistics-exchange-format/
package rir

const (
	ARINSource    = "https://ftp.arin.net/pub/stats/arin/delegated-arin-extended-latest"
	RIPESource    = "https://ftp.ripe.net/ripe/stats/delegated-ripencc-latest"
	AFRINICSource = "https://ftp.afrinic.net/pub/stats/afrinic/delegated-afrinic-latest"
	APNICSource   = "https://ftp.apnic.net/pub/stats/apnic/delegated-apnic-latest"
	LACNICSource  = "https://ftp.lacnic.net/pub/stats/lacnic/delegated-lacnic-latest"
)

// DefaultSources returns the five registry files. Ingestion requires all of
// them.
func DefaultSources() []string {
	return []string{ARINSource, RIPESource, AFRINICSource, APNICSource, LACNICSource}
}
