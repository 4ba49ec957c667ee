package mart

import "github.com/cartmetrics/abtest-cli/internal/model"

// sessionMetrics holds the session-scoped engagement metrics of one user.
type sessionMetrics struct {
	eventsInExposureSession int64
	avgDurationSeconds      *float64
}

// enrichSessions computes, per exposed user, the number of events inside the
// exposure session and the average duration of sessions starting within the
// outcome window.
//
// The exposure-session count is deliberately scoped by session identity
// only, not by the outcome window: bounce measures session-level engagement,
// so a late event in the same session still counts. The average duration is
// nil when no window session carries duration data; this is the sole metric
// permitted to stay unset.
func enrichSessions(events []model.Event, sessions []model.Session, byUser map[int64]Exposure) map[int64]*sessionMetrics {
	out := make(map[int64]*sessionMetrics, len(byUser))
	for uid := range byUser {
		out[uid] = &sessionMetrics{}
	}

	for _, ev := range events {
		exp, ok := byUser[ev.UserID]
		if !ok {
			continue
		}
		if ev.SessionID == exp.ExposureSessionID {
			out[ev.UserID].eventsInExposureSession++
		}
	}

	type durAcc struct {
		sum float64
		n   int64
	}
	durs := make(map[int64]*durAcc)
	for _, s := range sessions {
		exp, ok := byUser[s.UserID]
		if !ok || s.DurationSeconds == nil {
			continue
		}
		if s.SessionStartTS.Before(exp.ExposureTS) || !s.SessionStartTS.Before(exp.WindowEndTS) {
			continue
		}
		acc, ok := durs[s.UserID]
		if !ok {
			acc = &durAcc{}
			durs[s.UserID] = acc
		}
		acc.sum += *s.DurationSeconds
		acc.n++
	}
	for uid, acc := range durs {
		avg := acc.sum / float64(acc.n)
		out[uid].avgDurationSeconds = &avg
	}

	return out
}

// bounced reports whether an exposure session count indicates a bounce: the
// session held at most the exposure event itself.
func bounced(eventsInExposureSession int64) bool {
	return eventsInExposureSession <= 1
}
