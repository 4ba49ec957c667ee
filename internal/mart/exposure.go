package mart

import "github.com/cartmetrics/abtest-cli/internal/model"

// ResolveExposures determines, per user, the first qualifying exposure event.
// Rows with a missing user id or timestamp are excluded. For equal
// timestamps the earlier input row wins, so the result is stable in the
// original record order. Returns ErrNoExposures when the whole input holds
// no qualifying row.
func ResolveExposures(events []model.Event, p Params) ([]Exposure, error) {
	first := make(map[int64]model.Event)
	var order []int64

	for _, ev := range events {
		if ev.EventName != p.ExposureEvent {
			continue
		}
		if ev.UserID == 0 || ev.EventTS.IsZero() {
			continue
		}
		cur, ok := first[ev.UserID]
		if !ok {
			first[ev.UserID] = ev
			order = append(order, ev.UserID)
			continue
		}
		if ev.EventTS.Before(cur.EventTS) {
			first[ev.UserID] = ev
		}
	}

	if len(first) == 0 {
		return nil, ErrNoExposures
	}

	experimentIDs := experimentIDByUser(events)

	exposures := make([]Exposure, 0, len(first))
	for _, uid := range order {
		ev := first[uid]
		expID, ok := experimentIDs[uid]
		if !ok {
			expID = p.DefaultExperimentID
		}
		exposures = append(exposures, Exposure{
			UserID:            uid,
			ExperimentID:      expID,
			Variant:           ev.Variant,
			ExposureTS:        ev.EventTS,
			ExposureSessionID: ev.SessionID,
			WindowEndTS:       p.WindowEnd(ev.EventTS),
		})
	}

	return exposures, nil
}

// experimentIDByUser builds a first-seen user -> experiment id mapping from
// the event rows. Users whose events never carry an experiment id are absent
// from the map and fall back to the configured default.
func experimentIDByUser(events []model.Event) map[int64]string {
	m := make(map[int64]string)
	for _, ev := range events {
		if ev.UserID == 0 || ev.ExperimentID == "" {
			continue
		}
		if _, ok := m[ev.UserID]; !ok {
			m[ev.UserID] = ev.ExperimentID
		}
	}
	return m
}
