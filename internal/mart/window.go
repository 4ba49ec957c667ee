package mart

import "github.com/cartmetrics/abtest-cli/internal/model"

// windowMetrics accumulates the behavioral outcomes of a single user within
// the outcome window.
type windowMetrics struct {
	addToCart      bool
	beginCheckout  bool
	purchased      bool
	revenue        float64
	eventsInWindow int64
}

// aggregateWindow folds the event stream into per-user outcome metrics. Only
// events of exposed users falling inside the half-open window
// [exposure_ts, window_end_ts) are retained; the exposure event itself
// counts. Users with an exposure but no retained events are absent from the
// result and are zero-filled by the assembler.
func aggregateWindow(events []model.Event, byUser map[int64]Exposure, p Params) map[int64]*windowMetrics {
	out := make(map[int64]*windowMetrics)

	for _, ev := range events {
		exp, ok := byUser[ev.UserID]
		if !ok {
			continue
		}
		if ev.EventTS.Before(exp.ExposureTS) || !ev.EventTS.Before(exp.WindowEndTS) {
			continue
		}

		m, ok := out[ev.UserID]
		if !ok {
			m = &windowMetrics{}
			out[ev.UserID] = m
		}

		switch ev.EventName {
		case p.AddToCartEvent:
			m.addToCart = true
		case p.BeginCheckoutEvent:
			m.beginCheckout = true
		case p.PurchaseEvent:
			m.purchased = true
		}
		m.revenue += ev.NetRevenue
		m.eventsInWindow++
	}

	return out
}
