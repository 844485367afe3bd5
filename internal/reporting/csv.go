package reporting

import (
	"fmt"
	"strings"

	"amm-curve-lab/internal/domain"
)

// RenderRunsCSV renders completed runs as a CSV string.
func RenderRunsCSV(rows []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,series_id,curve_kind,driver,fee_rate,step_count,")
	sb.WriteString("from_timestamp,to_timestamp,fee_income,max_drawdown,final_price\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.6f,%d,%d,%d,%.8f,%.6f,%.8f\n",
			r.RunID,
			r.SeriesID,
			r.CurveKind,
			r.Driver,
			r.FeeRate,
			r.StepCount,
			r.FromTimestamp,
			r.ToTimestamp,
			r.FeeIncome,
			r.MaxDrawdown,
			r.FinalPrice,
		))
	}

	return sb.String()
}

// RenderStepsCSV renders backtest steps as a CSV string. time_fraction and
// implied_rate are empty for samm runs.
func RenderStepsCSV(steps []*domain.BacktestStep) string {
	var sb strings.Builder

	sb.WriteString("index,timestamp,input,reserve_a,reserve_b,invariant,price,")
	sb.WriteString("time_fraction,implied_rate,fee,cumulative_fee,total_value\n")

	for _, st := range steps {
		sb.WriteString(fmt.Sprintf("%d,%d,%g,%g,%g,%g,%g,%s,%s,%g,%g,%g\n",
			st.Index,
			st.Timestamp,
			st.Input,
			st.ReserveA,
			st.ReserveB,
			st.Invariant,
			st.Price,
			optional(st.TimeFraction),
			optional(st.ImpliedRate),
			st.Fee,
			st.CumulativeFee,
			st.TotalValue,
		))
	}

	return sb.String()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}
