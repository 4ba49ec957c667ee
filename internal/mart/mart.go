// Package mart builds the user_exposure and user_outcomes mart tables from
// the clean event log, the session table, and the experiment configuration.
//
// The whole transform is a pure, single-pass batch computation: group events
// by user, fold each group into per-user accumulators, then assemble the two
// output tables with explicit zero-record defaults. Re-running on identical
// inputs yields identical outputs.
package mart

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

// ErrNoExposures is returned when no event in the input matches the
// configured exposure event name. No mart can be built from such input.
var ErrNoExposures = eris.New("mart: no exposure rows found")

// Params carries the experiment configuration into the transform. Every
// component receives its settings explicitly; there is no global state.
type Params struct {
	ExposureEvent       string
	AddToCartEvent      string
	BeginCheckoutEvent  string
	PurchaseEvent       string
	OutcomeWindowDays   int
	DefaultExperimentID string
}

// WindowEnd returns the exclusive end of the outcome window for an exposure
// at ts.
func (p Params) WindowEnd(ts time.Time) time.Time {
	return ts.Add(time.Duration(p.OutcomeWindowDays) * 24 * time.Hour)
}

// Exposure is the first qualifying exposure event of a user, resolved by the
// exposure resolver. WindowEndTS is internal to the transform and never
// written to the exposure mart.
type Exposure struct {
	UserID            int64
	ExperimentID      string
	Variant           string
	ExposureTS        time.Time
	ExposureSessionID int64
	WindowEndTS       time.Time
}

// Marts holds the two assembled output tables, each with exactly one row per
// exposed user, sorted by user id.
type Marts struct {
	Exposure []model.UserExposure
	Outcomes []model.UserOutcome
}

// Build runs the full mart transform: resolve exposures, aggregate outcome
// windows, enrich with session metrics, compute 7-day retention, and
// assemble the final tables.
func Build(events []model.Event, sessions []model.Session, p Params) (*Marts, error) {
	exposures, err := ResolveExposures(events, p)
	if err != nil {
		return nil, err
	}

	byUser := make(map[int64]Exposure, len(exposures))
	for _, exp := range exposures {
		byUser[exp.UserID] = exp
	}

	window := aggregateWindow(events, byUser, p)
	session := enrichSessions(events, sessions, byUser)
	retained := retained7d(events, byUser)

	return assemble(exposures, window, session, retained), nil
}
