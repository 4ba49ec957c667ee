package stats

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ZTestResult holds the two-proportion z-test readout.
type ZTestResult struct {
	ControlRate   float64 `json:"control_rate"`
	TreatmentRate float64 `json:"treatment_rate"`
	Lift          float64 `json:"lift"`
	ZScore        float64 `json:"z_score"`
	PValue        float64 `json:"p_value"`
}

// TwoProportionZTest compares the purchase rates of treatment and control
// with a pooled standard error and a two-sided p-value.
func TwoProportionZTest(outcomes []model.UserOutcome) (*ZTestResult, error) {
	control, treatment := splitArms(outcomes)
	if len(control) == 0 || len(treatment) == 0 {
		return nil, eris.New("stats: z-test needs both control and treatment users")
	}

	n1, n2 := float64(len(control)), float64(len(treatment))
	x1, x2 := sum(control), sum(treatment)
	p1, p2 := x1/n1, x2/n2

	pPool := (x1 + x2) / (n1 + n2)
	se := math.Sqrt(pPool * (1 - pPool) * (1/n1 + 1/n2))
	if se == 0 {
		return nil, eris.New("stats: z-test standard error is zero")
	}

	z := (p2 - p1) / se
	pValue := 2 * (1 - stdNormal.CDF(math.Abs(z)))

	return &ZTestResult{
		ControlRate:   p1,
		TreatmentRate: p2,
		Lift:          p2 - p1,
		ZScore:        z,
		PValue:        pValue,
	}, nil
}

// LiftCI holds the difference of purchase rates with its confidence bounds.
type LiftCI struct {
	Lift  float64 `json:"lift"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Alpha float64 `json:"alpha"`
}

// ConfidenceInterval computes the (1-alpha) interval for the lift using
// per-arm sample variances.
func ConfidenceInterval(outcomes []model.UserOutcome, alpha float64) (*LiftCI, error) {
	control, treatment := splitArms(outcomes)
	if len(control) < 2 || len(treatment) < 2 {
		return nil, eris.New("stats: confidence interval needs at least two users per arm")
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, eris.Errorf("stats: alpha %v out of range (0, 1)", alpha)
	}

	diff := mean(treatment) - mean(control)
	se := math.Sqrt(sampleVariance(treatment)/float64(len(treatment)) +
		sampleVariance(control)/float64(len(control)))

	z := stdNormal.Quantile(1 - alpha/2)
	return &LiftCI{
		Lift:  diff,
		Lower: diff - z*se,
		Upper: diff + z*se,
		Alpha: alpha,
	}, nil
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 {
	return sum(xs) / float64(len(xs))
}

// sampleVariance is the unbiased (n-1) variance.
func sampleVariance(xs []float64) float64 {
	m := mean(xs)
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return s / float64(len(xs)-1)
}
