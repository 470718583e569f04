package report

import (
	"fmt"

	"github.com/go-analyze/charts"
)

// Chart renders the report's submission counts by status as a PNG pie chart.
func Chart(r *MonthlyReport) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("no report to chart")
	}

	var values []float64
	var names []string
	for _, slice := range []struct {
		name  string
		count int
	}{
		{"Verified", r.Verified},
		{"Pending", r.Pending},
		{"Rejected", r.Rejected},
	} {
		if slice.count == 0 {
			continue
		}
		names = append(names, fmt.Sprintf("%s (%d)", slice.name, slice.count))
		values = append(values, float64(slice.count))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no submissions for %s", r.Month)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: fmt.Sprintf("Submissions - %s", r.Month),
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// ChartFilename names the chart for a month, e.g. "report_March_2025.png".
func ChartFilename(month string) string {
	name := []rune(month)
	for i, r := range name {
		if r == ' ' || r == '/' {
			name[i] = '_'
		}
	}
	return fmt.Sprintf("report_%s.png", string(name))
}
