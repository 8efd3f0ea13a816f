package chemistry

import (
	"sort"

	"github.com/battos/battdiag/pkg/diagerr"
)

// Envelope is the resolved operating range of one chemistry and voltage class.
type Envelope struct {
	Chemistry      Chemistry `json:"chemistry"`
	NominalVoltage float64   `json:"nominalVoltage"`
	MaxVoltage     float64   `json:"maxVoltage"`
	MinVoltage     float64   `json:"minVoltage"`
	MaxTemperature float64   `json:"maxTemperature"`
	MinTemperature float64   `json:"minTemperature"`
}

// Span is the width of the voltage window.
func (e Envelope) Span() float64 {
	return e.MaxVoltage - e.MinVoltage
}

// Registry resolves envelopes from an immutable chemistry table.
// It is safe for concurrent use.
type Registry struct {
	table Table
}

// NewRegistry validates t and returns a registry over a private copy of it.
func NewRegistry(t Table) (*Registry, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Registry{table: t.clone()}, nil
}

// MustNewRegistry is like NewRegistry but panics on an invalid table.
func MustNewRegistry(t Table) *Registry {
	r, err := NewRegistry(t)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry over DefaultTable.
func Default() *Registry {
	return MustNewRegistry(DefaultTable())
}

func (r *Registry) profile(c Chemistry) (Profile, error) {
	p, ok := r.table[c]
	if !ok {
		known := r.Chemistries()
		return Profile{}, diagerr.New(diagerr.UnknownChemistry, "batteryType", string(c), known,
			"unknown battery type %q, valid types are %v", c, known)
	}
	return p, nil
}

// Profile returns a copy of the profile of c.
func (r *Registry) Profile(c Chemistry) (Profile, error) {
	p, err := r.profile(c)
	if err != nil {
		return Profile{}, err
	}
	p.Classes = append([]VoltageClass(nil), p.Classes...)
	if p.Factors != nil {
		f := *p.Factors
		p.Factors = &f
	}
	return p, nil
}

// Chemistries lists the chemistries in the table, in display order.
func (r *Registry) Chemistries() []Chemistry {
	out := make([]Chemistry, 0, len(r.table))
	for _, c := range All {
		if _, ok := r.table[c]; ok {
			out = append(out, c)
		}
	}
	// Anything a custom table added outside All goes last.
	var extra []Chemistry
	for c := range r.table {
		found := false
		for _, k := range out {
			if k == c {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Classes lists the predefined nominal voltages of c, ascending.
func (r *Registry) Classes(c Chemistry) ([]float64, error) {
	p, err := r.profile(c)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(p.Classes))
	for _, vc := range p.Classes {
		out = append(out, vc.Nominal)
	}
	return out, nil
}

// ResolveEnvelope returns the operating envelope of chemistry c at the given
// nominal voltage.
//
// Fixed classes are matched exactly; there is no interpolation between
// classes because cell topology differs per class. Chemistries with scale
// factors accept any positive nominal voltage. A nominal voltage of 0 means
// "not supplied" and only resolves when the chemistry has a single class.
func (r *Registry) ResolveEnvelope(c Chemistry, nominal float64) (Envelope, error) {
	p, err := r.profile(c)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		Chemistry:      c,
		MaxTemperature: p.MaxTemperature,
		MinTemperature: p.MinTemperature,
	}

	if nominal == 0 {
		if len(p.Classes) == 1 {
			vc := p.Classes[0]
			env.NominalVoltage, env.MaxVoltage, env.MinVoltage = vc.Nominal, vc.Max, vc.Min
			return env, nil
		}
		return Envelope{}, diagerr.New(diagerr.InvalidVoltage, "nominalVoltage", nominal, nil,
			"nominal voltage must be provided for battery type %s", c)
	}

	for _, vc := range p.Classes {
		if vc.Nominal == nominal {
			env.NominalVoltage, env.MaxVoltage, env.MinVoltage = vc.Nominal, vc.Max, vc.Min
			return env, nil
		}
	}

	if p.Factors != nil {
		if nominal < 0 {
			return Envelope{}, diagerr.New(diagerr.InvalidVoltage, "nominalVoltage", nominal, 0,
				"nominal voltage %vV must be positive", nominal)
		}
		env.NominalVoltage = nominal
		env.MaxVoltage = nominal * p.Factors.MaxVoltageFactor
		env.MinVoltage = nominal * p.Factors.MinVoltageFactor
		return env, nil
	}

	valid, _ := r.Classes(c)
	return Envelope{}, diagerr.New(diagerr.UnknownVoltageClass, "nominalVoltage", nominal, valid,
		"invalid nominal voltage %vV, available nominal voltages for %s: %v", nominal, c, valid)
}

// TemperatureCompensationFactor checks temperature against the limits of c
// and returns the measurement accuracy multiplier for its band. Accuracy
// peaks between 25 and 35°C.
func (r *Registry) TemperatureCompensationFactor(temperature float64, c Chemistry) (float64, error) {
	p, err := r.profile(c)
	if err != nil {
		return 0, err
	}

	if temperature > p.MaxTemperature {
		return 0, diagerr.New(diagerr.TemperatureOutOfRange, "temperature", temperature, p.MaxTemperature,
			"temperature %v°C exceeds maximum allowed %v°C", temperature, p.MaxTemperature)
	}
	if temperature < p.MinTemperature {
		return 0, diagerr.New(diagerr.TemperatureOutOfRange, "temperature", temperature, p.MinTemperature,
			"temperature %v°C below minimum allowed %v°C", temperature, p.MinTemperature)
	}

	switch {
	case temperature < 0:
		return 0.8, nil
	case temperature < 10:
		return 0.9, nil
	case temperature < 25:
		return 0.95, nil
	case temperature < 35:
		return 1.0, nil
	case temperature < 40:
		return 0.95, nil
	default:
		return 0.9, nil
	}
}
