package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// CountryList stores country codes in a single comma separated column.
type CountryList []string

// Value implements driver.Valuer.
func (c CountryList) Value() (driver.Value, error) {
	return strings.Join(c, ","), nil
}

// Scan implements sql.Scanner.
func (c *CountryList) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("domain.CountryList: unsupported type %T", value)
	}

	if raw == "" {
		*c = nil
		return nil
	}
	*c = strings.Split(raw, ",")
	return nil
}
