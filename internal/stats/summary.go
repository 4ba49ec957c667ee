// Package stats implements the experiment readout over the user outcomes
// mart: per-variant conversion summaries, a two-proportion z-test, a lift
// confidence interval, and a logistic regression of purchase on treatment.
package stats

import (
	"sort"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// VariantSummary aggregates one experiment arm.
type VariantSummary struct {
	Variant        string  `json:"variant"`
	Users          int64   `json:"users"`
	Conversions    int64   `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
	RevenuePerUser float64 `json:"revenue_per_user"`
}

// ConversionSummary aggregates outcomes per variant, sorted by variant name.
func ConversionSummary(outcomes []model.UserOutcome) []VariantSummary {
	type acc struct {
		users       int64
		conversions int64
		revenue     float64
	}
	byVariant := map[string]*acc{}
	for _, o := range outcomes {
		a := byVariant[o.Variant]
		if a == nil {
			a = &acc{}
			byVariant[o.Variant] = a
		}
		a.users++
		a.conversions += int64(o.Purchased)
		a.revenue += o.Revenue
	}

	variants := make([]string, 0, len(byVariant))
	for v := range byVariant {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	out := make([]VariantSummary, 0, len(variants))
	for _, v := range variants {
		a := byVariant[v]
		out = append(out, VariantSummary{
			Variant:        v,
			Users:          a.users,
			Conversions:    a.conversions,
			ConversionRate: float64(a.conversions) / float64(a.users),
			RevenuePerUser: a.revenue / float64(a.users),
		})
	}
	return out
}

// splitArms partitions outcomes into control and treatment purchase flags.
func splitArms(outcomes []model.UserOutcome) (control, treatment []float64) {
	for _, o := range outcomes {
		switch o.Variant {
		case "control":
			control = append(control, float64(o.Purchased))
		case "treatment":
			treatment = append(treatment, float64(o.Purchased))
		}
	}
	return control, treatment
}
