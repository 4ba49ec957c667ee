package gen

import (
	"time"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// Sessions generates 1-5 browsing sessions per user, each starting between
// the user's signup and the end of the data window and lasting 1-30 minutes.
func Sessions(p Params, users []model.User) []model.Session {
	r := p.rng(seedSessions)

	var sessions []model.Session
	sessionID := int64(1)
	for _, u := range users {
		n := 1 + r.IntN(5)
		for i := 0; i < n; i++ {
			if u.SignupTS.After(p.EndDate) {
				continue
			}
			day := randomDay(r, u.SignupTS, p.EndDate)
			start := day.Add(time.Duration(r.IntN(24*60)) * time.Minute)
			durationMin := 1 + r.IntN(30)
			end := start.Add(time.Duration(durationMin) * time.Minute)

			duration := end.Sub(start).Seconds()
			sessions = append(sessions, model.Session{
				SessionID:       sessionID,
				UserID:          u.UserID,
				SessionStartTS:  start,
				SessionEndTS:    end,
				DurationSeconds: &duration,
			})
			sessionID++
		}
	}
	return sessions
}

// Assignments assigns every user to control or treatment with a 50/50 split.
// The assignment activates 0-7 days after signup.
func Assignments(p Params, users []model.User, experimentID string) []model.ExperimentAssignment {
	r := p.rng(seedAssignments)

	assignments := make([]model.ExperimentAssignment, len(users))
	for i, u := range users {
		variant := "control"
		if r.Float64() < 0.5 {
			variant = "treatment"
		}
		assignments[i] = model.ExperimentAssignment{
			UserID:       u.UserID,
			Variant:      variant,
			ExperimentID: experimentID,
			AssignmentTS: u.SignupTS.AddDate(0, 0, r.IntN(8)),
		}
	}
	return assignments
}
