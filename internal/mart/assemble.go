package mart

import (
	"sort"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// assemble joins the component maps against the full exposed population and
// emits the two mart tables. A user missing from a component gets a
// well-defined zero record instead of a null: flags and counts become 0 and
// revenue 0.0. A user with no event in the exposure session counts as
// bounced. Output rows are sorted by user id so identical inputs produce
// byte-identical tables.
func assemble(
	exposures []Exposure,
	window map[int64]*windowMetrics,
	session map[int64]*sessionMetrics,
	retained map[int64]bool,
) *Marts {
	sorted := make([]Exposure, len(exposures))
	copy(sorted, exposures)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	exposure := make([]model.UserExposure, 0, len(sorted))
	outcomes := make([]model.UserOutcome, 0, len(sorted))

	for _, exp := range sorted {
		exposure = append(exposure, model.UserExposure{
			ExperimentID:      exp.ExperimentID,
			UserID:            exp.UserID,
			Variant:           exp.Variant,
			ExposureTS:        exp.ExposureTS,
			ExposureSessionID: exp.ExposureSessionID,
		})

		out := model.UserOutcome{
			ExperimentID: exp.ExperimentID,
			UserID:       exp.UserID,
			Variant:      exp.Variant,
			ExposureTS:   exp.ExposureTS,
		}

		if w, ok := window[exp.UserID]; ok {
			out.AddToCart = boolFlag(w.addToCart)
			out.BeginCheckout = boolFlag(w.beginCheckout)
			out.Purchased = boolFlag(w.purchased)
			out.Revenue = w.revenue
			out.EventsInWindow = w.eventsInWindow
		}

		if s, ok := session[exp.UserID]; ok {
			out.EventsInExposureSession = s.eventsInExposureSession
			out.AvgSessionDurationSeconds = s.avgDurationSeconds
		}
		out.Bounce = boolFlag(bounced(out.EventsInExposureSession))

		if retained[exp.UserID] {
			out.Retained7d = 1
		}

		outcomes = append(outcomes, out)
	}

	return &Marts{Exposure: exposure, Outcomes: outcomes}
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
