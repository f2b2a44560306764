package asdu

import (
	"fmt"
	"strings"
)

// Quality is the 8-bit quality descriptor attached to monitored values.
type Quality uint8

const (
	QualityOV Quality = 0x01 // overflow
	QualityNT Quality = 0x04 // not topical
	QualitySB Quality = 0x08 // substituted
	QualityBL Quality = 0x10 // blocked
	QualityEI Quality = 0x20 // elapsed time invalid
	QualityES Quality = 0x40 // event state
	QualityIV Quality = 0x80 // invalid
)

var qualityOrder = []struct {
	flag Quality
	name string
}{
	{QualityOV, "OV"},
	{QualityNT, "NT"},
	{QualitySB, "SB"},
	{QualityBL, "BL"},
	{QualityEI, "EI"},
	{QualityES, "ES"},
	{QualityIV, "IV"},
}

// Flags lists the names of the set flags, lowest bit first.
func (q Quality) Flags() []string {
	out := make([]string, 0, len(qualityOrder))
	for _, f := range qualityOrder {
		if q&f.flag != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

func (q Quality) Has(flag Quality) bool {
	return q&flag == flag
}

// Good reports a descriptor with no flags raised.
func (q Quality) Good() bool {
	return q == 0
}

// ParseQuality builds a descriptor from flag names such as "IV" or "nt".
func ParseQuality(names []string) (Quality, error) {
	var q Quality
	for _, name := range names {
		flag, ok := qualityByName(strings.ToUpper(strings.TrimSpace(name)))
		if !ok {
			return 0, fmt.Errorf("asdu: unknown quality flag %q", name)
		}
		q |= flag
	}
	return q, nil
}

func qualityByName(name string) (Quality, bool) {
	for _, f := range qualityOrder {
		if f.name == name {
			return f.flag, true
		}
	}
	return 0, false
}
