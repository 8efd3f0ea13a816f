package chemistry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/battos/battdiag/pkg/diagerr"
)

// Chemistry is a battery cell technology family.
type Chemistry string

const (
	LiIon    Chemistry = "Li-ion"
	LFP      Chemistry = "LFP"
	LeadAcid Chemistry = "Lead-acid"
	// LiPo and NiMH are generic families. Their envelopes are derived from
	// scale factors instead of a fixed voltage class list.
	LiPo Chemistry = "LiPo"
	NiMH Chemistry = "NiMH"
)

// All lists every known chemistry in display order.
var All = []Chemistry{LiIon, LFP, LeadAcid, LiPo, NiMH}

var aliases = map[string]Chemistry{
	"li-ion":    LiIon,
	"liion":     LiIon,
	"lithium":   LiIon,
	"lfp":       LFP,
	"lifepo4":   LFP,
	"lifepo₄":   LFP,
	"lead-acid": LeadAcid,
	"leadacid":  LeadAcid,
	"lead acid": LeadAcid,
	"pb":        LeadAcid,
	"lipo":      LiPo,
	"li-po":     LiPo,
	"nimh":      NiMH,
	"ni-mh":     NiMH,
}

// Parse maps a chemistry name or one of its aliases to a Chemistry.
func Parse(s string) (Chemistry, error) {
	if c, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", diagerr.New(diagerr.UnknownChemistry, "batteryType", s, All,
		"unknown battery type %q, valid types are %v", s, All)
}

func (c Chemistry) String() string {
	return string(c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Chemistry) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting aliases.
func (c *Chemistry) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var compoundType = regexp.MustCompile(`^(.+?)[_ ]([0-9]+(?:\.[0-9]+)?)[vV]$`)

// ParseBatteryType parses either a plain chemistry ("LFP") or a compound tag
// that also names the voltage class ("LFP_48V", "Li-ion_24V"). The returned
// nominal voltage is 0 when the tag does not carry one.
func ParseBatteryType(s string) (Chemistry, float64, error) {
	if m := compoundType.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		c, err := Parse(m[1])
		if err != nil {
			return "", 0, err
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return "", 0, diagerr.New(diagerr.InvalidVoltage, "batteryType", s, nil,
				"invalid nominal voltage in battery type %q", s)
		}
		return c, v, nil
	}

	c, err := Parse(s)
	return c, 0, err
}
