package mart

import (
	"time"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

const day = 24 * time.Hour

// retained7d marks users with at least one event of any type inside the
// fixed day-7 re-engagement window [exposure_ts+7d, exposure_ts+8d). The
// bounds do not depend on the configured outcome window.
func retained7d(events []model.Event, byUser map[int64]Exposure) map[int64]bool {
	out := make(map[int64]bool)

	for _, ev := range events {
		exp, ok := byUser[ev.UserID]
		if !ok || out[ev.UserID] {
			continue
		}
		start := exp.ExposureTS.Add(7 * day)
		end := exp.ExposureTS.Add(8 * day)
		if !ev.EventTS.Before(start) && ev.EventTS.Before(end) {
			out[ev.UserID] = true
		}
	}

	return out
}
