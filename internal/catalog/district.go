package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/soyeahso/sawt/internal/validate"
)

// MaxSuggestions bounds the alternatives offered for an unknown district.
const MaxSuggestions = 3

// District is a delivery coverage area.
type District struct {
	Name    string          `json:"name" yaml:"name"`
	NameEN  string          `json:"nameEn,omitempty" yaml:"nameEn"`
	City    string          `json:"city,omitempty" yaml:"city"`
	Aliases []string        `json:"aliases,omitempty" yaml:"aliases"`
	Fee     decimal.Decimal `json:"fee" yaml:"fee"`
	ETA     string          `json:"eta,omitempty" yaml:"eta"`
	Active  bool            `json:"active" yaml:"active"`
}

func (d District) names() []string {
	out := []string{validate.AreaName(d.Name)}
	if d.NameEN != "" {
		out = append(out, validate.AreaName(d.NameEN))
	}
	for _, a := range d.Aliases {
		out = append(out, validate.AreaName(a))
	}
	return out
}

// MatchDistrict resolves a customer-typed district against the active
// districts. An exact name or alias match is covered; otherwise partial
// matches come back as suggestions.
func MatchDistrict(districts []District, query string) Coverage {
	q := validate.AreaName(query)
	if q == "" {
		return Coverage{}
	}

	for _, d := range districts {
		if !d.Active {
			continue
		}
		for _, n := range d.names() {
			if n == q {
				return Coverage{Covered: true, District: d.Name, Fee: d.Fee, ETA: d.ETA}
			}
		}
	}

	var cov Coverage
	for _, d := range districts {
		if !d.Active || len(cov.Suggestions) == MaxSuggestions {
			continue
		}
		for _, n := range d.names() {
			if strings.Contains(n, q) || strings.Contains(q, n) {
				cov.Suggestions = append(cov.Suggestions, d.Name)
				break
			}
		}
	}
	return cov
}
