package stats

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

const (
	logitMaxIter = 50
	logitTol     = 1e-8
)

// LogitResult holds the fitted model purchased ~ is_treatment + events_in_window.
// Post-treatment funnel mediators (add_to_cart, begin_checkout) are
// deliberately not controlled for: conditioning on them biases the
// treatment estimate.
type LogitResult struct {
	Intercept          float64 `json:"intercept"`
	TreatmentCoef      float64 `json:"treatment_coef"`
	TreatmentOddsRatio float64 `json:"treatment_odds_ratio"`
	EventsCoef         float64 `json:"events_coef"`
	MeanPredicted      float64 `json:"mean_predicted"`
	Iterations         int     `json:"iterations"`
	Converged          bool    `json:"converged"`
}

// LogisticRegression fits the purchase model by iteratively reweighted
// least squares (Newton-Raphson on the log-likelihood).
func LogisticRegression(outcomes []model.UserOutcome) (*LogitResult, error) {
	n := len(outcomes)
	if n < 3 {
		return nil, eris.New("stats: logistic regression needs at least 3 observations")
	}

	const p = 3 // intercept, is_treatment, events_in_window
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i, o := range outcomes {
		isTreatment := 0.0
		if o.Variant == "treatment" {
			isTreatment = 1.0
		}
		x.Set(i, 0, 1)
		x.Set(i, 1, isTreatment)
		x.Set(i, 2, float64(o.EventsInWindow))
		y[i] = float64(o.Purchased)
	}

	beta := make([]float64, p)
	var iterations int
	converged := false

	for iter := 0; iter < logitMaxIter; iter++ {
		iterations = iter + 1

		// Weighted normal equations: (X'WX) delta = X'(y - mu).
		xtwx := mat.NewSymDense(p, nil)
		xtr := mat.NewVecDense(p, nil)
		for i := 0; i < n; i++ {
			eta := 0.0
			for j := 0; j < p; j++ {
				eta += x.At(i, j) * beta[j]
			}
			mu := sigmoid(eta)
			w := mu * (1 - mu)
			if w < 1e-10 {
				w = 1e-10
			}
			for j := 0; j < p; j++ {
				xij := x.At(i, j)
				xtr.SetVec(j, xtr.AtVec(j)+xij*(y[i]-mu))
				for k := j; k < p; k++ {
					xtwx.SetSym(j, k, xtwx.At(j, k)+w*xij*x.At(i, k))
				}
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(xtwx); !ok {
			return nil, eris.New("stats: logistic regression information matrix is singular")
		}
		var delta mat.VecDense
		if err := chol.SolveVecTo(&delta, xtr); err != nil {
			return nil, eris.Wrap(err, "stats: logistic regression solve")
		}

		maxStep := 0.0
		for j := 0; j < p; j++ {
			beta[j] += delta.AtVec(j)
			if s := math.Abs(delta.AtVec(j)); s > maxStep {
				maxStep = s
			}
		}
		if maxStep < logitTol {
			converged = true
			break
		}
	}

	var predictedSum float64
	for i := 0; i < n; i++ {
		eta := 0.0
		for j := 0; j < p; j++ {
			eta += x.At(i, j) * beta[j]
		}
		predictedSum += sigmoid(eta)
	}

	return &LogitResult{
		Intercept:          beta[0],
		TreatmentCoef:      beta[1],
		TreatmentOddsRatio: math.Exp(beta[1]),
		EventsCoef:         beta[2],
		MeanPredicted:      predictedSum / float64(n),
		Iterations:         iterations,
		Converged:          converged,
	}, nil
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}
