package gen

import (
	"strconv"
	"time"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// Funnel base probabilities for the control group.
const (
	pViewProduct          = 0.70
	pAddToCartGivenView   = 0.12
	pBeginCheckoutGivenAC = 0.55
	pPurchaseGivenCO      = 0.60

	// Relative lift applied only to the purchase step for treatment users.
	relLiftPurchase = 0.06
)

// Events walks the funnel for every session and emits the raw event log:
// session_start, optional view_home/search, then view_product →
// add_to_cart → begin_checkout → purchase, and an optional logout.
// Treatment users get a relative uplift on the purchase probability.
func Events(p Params, sessions []model.Session, products []model.Product, assignments []model.ExperimentAssignment) []model.RawEvent {
	r := p.rng(seedEvents)

	variantByUser := make(map[int64]string, len(assignments))
	for _, a := range assignments {
		variantByUser[a.UserID] = a.Variant
	}

	var events []model.RawEvent
	eventID := int64(1)

	emit := func(s model.Session, ts time.Time, eventType, productID string, paid float64, qty int, discount float64) {
		ev := model.RawEvent{
			EventID:   strconv.FormatInt(eventID, 10),
			EventTS:   ts,
			UserID:    s.UserID,
			SessionID: s.SessionID,
			ProductID: productID,
			EventType: eventType,
		}
		if eventType == "purchase" {
			ev.PricePaid = strconv.FormatFloat(paid, 'f', 2, 64)
			ev.Quantity = strconv.Itoa(qty)
			ev.DiscountAmount = strconv.FormatFloat(discount, 'f', 2, 64)
		}
		events = append(events, ev)
		eventID++
	}

	for _, s := range sessions {
		variant := variantByUser[s.UserID]
		if variant == "" {
			variant = "control"
		}

		sec := 0
		at := func() time.Time {
			ts := s.SessionStartTS.Add(time.Duration(sec) * time.Second)
			if ts.After(s.SessionEndTS) {
				return s.SessionEndTS
			}
			return ts
		}

		emit(s, at(), "session_start", "", 0, 0, 0)
		sec += 5 + r.IntN(15)

		if r.Float64() < 0.50 {
			emit(s, at(), "view_home", "", 0, 0, 0)
			sec += 5 + r.IntN(20)
		}

		if r.Float64() < 0.35 {
			emit(s, at(), "search", "", 0, 0, 0)
			sec += 5 + r.IntN(20)
		}

		if r.Float64() < pViewProduct {
			product := products[r.IntN(len(products))]

			emit(s, at(), "view_product", product.ProductID, 0, 0, 0)
			sec += 5 + r.IntN(25)

			if r.Float64() < pAddToCartGivenView {
				emit(s, at(), "add_to_cart", product.ProductID, 0, 0, 0)
				sec += 5 + r.IntN(25)

				if r.Float64() < pBeginCheckoutGivenAC {
					emit(s, at(), "begin_checkout", product.ProductID, 0, 0, 0)
					sec += 5 + r.IntN(35)

					pPurchase := pPurchaseGivenCO
					if variant == "treatment" {
						pPurchase = clamp(pPurchase * (1.0 + relLiftPurchase))
					}

					if r.Float64() < pPurchase {
						qty := []int{1, 1, 1, 2, 2, 3}[r.IntN(6)]
						discount := []float64{0, 0, 0, 5, 10}[r.IntN(5)]
						paid := product.BasePrice*float64(qty) - discount
						if paid < 0 {
							paid = 0
						}
						emit(s, at(), "purchase", product.ProductID, paid, qty, discount)
						sec += 5 + r.IntN(25)
					}
				}
			}
		}

		if r.Float64() < 0.20 {
			emit(s, at(), "logout", "", 0, 0, 0)
		}
	}
	return events
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
