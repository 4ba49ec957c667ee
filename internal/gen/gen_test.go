package gen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmetrics/abtest-cli/internal/config"
)

func testParams(t *testing.T) Params {
	t.Helper()
	p, err := NewParams(config.GenerateConfig{
		Seed:      42,
		Users:     200,
		Products:  50,
		StartDate: "2024-01-01",
		EndDate:   "2024-03-31",
	})
	require.NoError(t, err)
	return p
}

func TestNewParamsValidation(t *testing.T) {
	_, err := NewParams(config.GenerateConfig{Seed: 1, Users: 10, Products: 10, StartDate: "bad", EndDate: "2024-01-01"})
	assert.Error(t, err)

	_, err = NewParams(config.GenerateConfig{Seed: 1, Users: 10, Products: 10, StartDate: "2024-02-01", EndDate: "2024-01-01"})
	assert.Error(t, err)

	_, err = NewParams(config.GenerateConfig{Seed: 1, Users: 0, Products: 10, StartDate: "2024-01-01", EndDate: "2024-02-01"})
	assert.Error(t, err)
}

func TestUsersDeterministic(t *testing.T) {
	p := testParams(t)

	a := Users(p)
	b := Users(p)
	require.Len(t, a, 200)
	assert.Equal(t, a, b)

	for _, u := range a {
		assert.False(t, u.SignupTS.Before(p.StartDate), "user %d signed up before window", u.UserID)
		assert.False(t, u.SignupTS.After(p.EndDate), "user %d signed up after window", u.UserID)
		assert.Contains(t, []string{"mobile", "desktop"}, u.DeviceType)
	}
	assert.Equal(t, int64(1), a[0].UserID)
	assert.Equal(t, int64(200), a[199].UserID)
}

func TestProductsPriceRange(t *testing.T) {
	p := testParams(t)

	products := Products(p)
	require.Len(t, products, 50)
	for _, pr := range products {
		assert.GreaterOrEqual(t, pr.BasePrice, 5.99)
		assert.LessOrEqual(t, pr.BasePrice, 499.99)
		assert.NotEmpty(t, pr.Category)
	}
}

func TestSessionsWithinWindow(t *testing.T) {
	p := testParams(t)
	users := Users(p)

	sessions := Sessions(p, users)
	require.NotEmpty(t, sessions)

	signupByUser := map[int64]time.Time{}
	for _, u := range users {
		signupByUser[u.UserID] = u.SignupTS
	}

	seen := map[int64]bool{}
	for _, s := range sessions {
		assert.False(t, seen[s.SessionID], "duplicate session id %d", s.SessionID)
		seen[s.SessionID] = true

		assert.False(t, s.SessionStartTS.Before(signupByUser[s.UserID]))
		assert.True(t, s.SessionEndTS.After(s.SessionStartTS))
		require.NotNil(t, s.DurationSeconds)
		assert.InDelta(t, s.SessionEndTS.Sub(s.SessionStartTS).Seconds(), *s.DurationSeconds, 0.001)
	}
}

func TestAssignmentsOnePerUser(t *testing.T) {
	p := testParams(t)
	users := Users(p)

	assignments := Assignments(p, users, "pdp_redesign_experiment")
	require.Len(t, assignments, len(users))

	var treatment int
	for _, a := range assignments {
		assert.Equal(t, "pdp_redesign_experiment", a.ExperimentID)
		assert.Contains(t, []string{"control", "treatment"}, a.Variant)
		if a.Variant == "treatment" {
			treatment++
		}
	}
	// 50/50 split within a loose tolerance for n=200.
	assert.InDelta(t, 100, treatment, 40)
}

func TestEventsFunnelOrder(t *testing.T) {
	p := testParams(t)
	users := Users(p)
	products := Products(p)
	sessions := Sessions(p, users)
	assignments := Assignments(p, users, "pdp_redesign_experiment")

	events := Events(p, sessions, products, assignments)
	require.NotEmpty(t, events)

	byType := map[string]int{}
	bySession := map[int64][]string{}
	for _, ev := range events {
		byType[ev.EventType]++
		bySession[ev.SessionID] = append(bySession[ev.SessionID], ev.EventType)

		if ev.EventType == "purchase" {
			assert.NotEmpty(t, ev.PricePaid)
			assert.NotEmpty(t, ev.Quantity)
		} else {
			assert.Empty(t, ev.PricePaid)
		}
	}

	// Every session opens with session_start; the funnel only narrows.
	for id, types := range bySession {
		assert.Equal(t, "session_start", types[0], "session %d", id)
	}
	assert.Equal(t, len(sessions), byType["session_start"])
	assert.Greater(t, byType["view_product"], 0)
	assert.GreaterOrEqual(t, byType["view_product"], byType["add_to_cart"])
	assert.GreaterOrEqual(t, byType["add_to_cart"], byType["begin_checkout"])
	assert.GreaterOrEqual(t, byType["begin_checkout"], byType["purchase"])
}

func TestEventsTimestampsBoundedBySession(t *testing.T) {
	p := testParams(t)
	users := Users(p)
	products := Products(p)
	sessions := Sessions(p, users)
	assignments := Assignments(p, users, "pdp_redesign_experiment")

	endBySession := map[int64]time.Time{}
	startBySession := map[int64]time.Time{}
	for _, s := range sessions {
		startBySession[s.SessionID] = s.SessionStartTS
		endBySession[s.SessionID] = s.SessionEndTS
	}

	for _, ev := range Events(p, sessions, products, assignments) {
		assert.False(t, ev.EventTS.Before(startBySession[ev.SessionID]))
		assert.False(t, ev.EventTS.After(endBySession[ev.SessionID]))
	}
}
