//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

func main() {
	r := &report.MonthlyReport{
		Month:              "March 2025",
		Pending:            4,
		Verified:           17,
		Rejected:           2,
		TotalVerified:      decimal.NewFromInt(5400),
		TotalFines:         decimal.NewFromInt(150),
		VerifiedSubmitters: 17,
		TotalMembers:       20,
		ComplianceRate:     0.85,
	}

	chartData, err := report.Chart(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	filename := report.ChartFilename(r.Month)
	if err := os.WriteFile(filename, chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Chart saved to %s\n", filename)
}
