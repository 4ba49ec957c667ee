// Package report renders the experiment readout as an XLSX workbook for
// non-engineering stakeholders.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cartmetrics/abtest-cli/internal/stats"
)

// Readout bundles everything the analyze command computed.
type Readout struct {
	ExperimentID string
	Summary      []stats.VariantSummary
	ZTest        *stats.ZTestResult
	CI           *stats.LiftCI
	Logit        *stats.LogitResult
}

// WriteXLSX writes the readout workbook to path. One sheet per section;
// sections with no data are omitted.
func WriteXLSX(path string, r Readout) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, r.Summary); err != nil {
		return err
	}
	if r.ZTest != nil || r.CI != nil {
		if err := addTestSheet(f, r.ZTest, r.CI); err != nil {
			return err
		}
	}
	if r.Logit != nil {
		if err := addLogitSheet(f, r.Logit); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, summary []stats.VariantSummary) error {
	sheet, err := f.AddSheet("Conversion Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addRow(sheet, "variant", "users", "conversions", "conversion_rate", "revenue_per_user")
	for _, s := range summary {
		addRow(sheet, s.Variant,
			strconv.FormatInt(s.Users, 10),
			strconv.FormatInt(s.Conversions, 10),
			formatFloat(s.ConversionRate),
			formatFloat(s.RevenuePerUser),
		)
	}
	return nil
}

func addTestSheet(f *xlsx.File, z *stats.ZTestResult, ci *stats.LiftCI) error {
	sheet, err := f.AddSheet("Hypothesis Test")
	if err != nil {
		return eris.Wrap(err, "report: add test sheet")
	}

	addRow(sheet, "metric", "value")
	if z != nil {
		addRow(sheet, "control_rate", formatFloat(z.ControlRate))
		addRow(sheet, "treatment_rate", formatFloat(z.TreatmentRate))
		addRow(sheet, "lift", formatFloat(z.Lift))
		addRow(sheet, "z_score", formatFloat(z.ZScore))
		addRow(sheet, "p_value", formatFloat(z.PValue))
	}
	if ci != nil {
		addRow(sheet, "ci_lower", formatFloat(ci.Lower))
		addRow(sheet, "ci_upper", formatFloat(ci.Upper))
		addRow(sheet, "alpha", formatFloat(ci.Alpha))
	}
	return nil
}

func addLogitSheet(f *xlsx.File, logit *stats.LogitResult) error {
	sheet, err := f.AddSheet("Logistic Regression")
	if err != nil {
		return eris.Wrap(err, "report: add logit sheet")
	}

	addRow(sheet, "metric", "value")
	addRow(sheet, "intercept", formatFloat(logit.Intercept))
	addRow(sheet, "treatment_coef", formatFloat(logit.TreatmentCoef))
	addRow(sheet, "treatment_odds_ratio", formatFloat(logit.TreatmentOddsRatio))
	addRow(sheet, "events_coef", formatFloat(logit.EventsCoef))
	addRow(sheet, "mean_predicted", formatFloat(logit.MeanPredicted))
	addRow(sheet, "converged", strconv.FormatBool(logit.Converged))
	return nil
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
