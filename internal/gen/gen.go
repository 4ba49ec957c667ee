// Package gen fabricates the synthetic raw datasets: users, products,
// sessions, experiment assignments, and funnel events. Every generator is
// deterministic for a given seed; each dataset uses its own seed offset so
// changing one volume parameter does not reshuffle the others.
package gen

import (
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/config"
)

// Seed offsets per dataset.
const (
	seedUsers       = 0
	seedProducts    = 1
	seedAssignments = 2
	seedSessions    = 3
	seedEvents      = 4
)

// Params holds the parsed generation parameters.
type Params struct {
	Seed      int64
	Users     int
	Products  int
	StartDate time.Time
	EndDate   time.Time
}

// NewParams validates and parses the generation config.
func NewParams(cfg config.GenerateConfig) (Params, error) {
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return Params{}, eris.Wrapf(err, "gen: parse start_date %q", cfg.StartDate)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return Params{}, eris.Wrapf(err, "gen: parse end_date %q", cfg.EndDate)
	}
	if end.Before(start) {
		return Params{}, eris.New("gen: end_date before start_date")
	}
	if cfg.Users <= 0 || cfg.Products <= 0 {
		return Params{}, eris.New("gen: users and products must be positive")
	}
	return Params{
		Seed:      cfg.Seed,
		Users:     cfg.Users,
		Products:  cfg.Products,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// rng returns a deterministic source for one dataset.
func (p Params) rng(offset int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(p.Seed+offset), uint64(p.Seed+offset)))
}

// randomDay picks a random midnight between from and to inclusive.
func randomDay(r *rand.Rand, from, to time.Time) time.Time {
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return from.AddDate(0, 0, r.IntN(days))
}

// weightedChoice picks an index according to the given probability weights.
func weightedChoice(r *rand.Rand, probs []float64) int {
	x := r.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if x < acc {
			return i
		}
	}
	return len(probs) - 1
}
