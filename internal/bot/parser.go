package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	appmodels "gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// paymentDateLayouts are the date formats accepted in /pay.
var paymentDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

const minPaymentYear = 2000

var errPayUsage = errors.New("expected amount, date, phone and name")

// PaymentClaim is what a member says they paid, before the proof arrives.
type PaymentClaim struct {
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"payment_date"`
	Phone        string          `json:"phone"`
	Name         string          `json:"name"`
	PaymentMonth string          `json:"payment_month,omitempty"`
}

// parsePaymentClaim parses "/pay" arguments:
// <amount> <date> <phone> <name...> [for <Month> <YYYY>].
func parsePaymentClaim(args string) (*PaymentClaim, error) {
	fields := strings.Fields(args)
	if len(fields) < 4 {
		return nil, errPayUsage
	}

	amount, err := parseAmount(fields[0])
	if err != nil {
		return nil, err
	}

	date, err := parsePaymentDate(fields[1])
	if err != nil {
		return nil, err
	}

	phone := appmodels.NormalizePhone(fields[2])
	if phone == "" {
		return nil, fmt.Errorf("%q is not a phone number", fields[2])
	}

	rest := fields[3:]
	month := ""
	if n := len(rest); n >= 3 && strings.EqualFold(rest[n-3], "for") {
		t, err := appmodels.ParseMonth(rest[n-2] + " " + rest[n-1])
		if err != nil {
			return nil, fmt.Errorf("%q is not a month like \"March 2025\"", rest[n-2]+" "+rest[n-1])
		}
		month = appmodels.FormatMonth(t)
		rest = rest[:n-3]
	}

	name := strings.Join(rest, " ")
	if name == "" {
		return nil, errors.New("member name is required")
	}

	return &PaymentClaim{
		Amount:       amount,
		PaymentDate:  date,
		Phone:        phone,
		Name:         name,
		PaymentMonth: month,
	}, nil
}

// parseAmount accepts amounts like 500, R500, 1,250.50.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(s, "R"), "r")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount", s)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, errors.New("amount must be greater than zero")
	}
	return amount, nil
}

func parsePaymentDate(s string) (time.Time, error) {
	for _, layout := range paymentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil && t.Year() >= minPaymentYear {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date like 2025-03-05 or 05/03/2025", s)
}

// formatClaim summarises a claim for confirmation messages.
func formatClaim(c *PaymentClaim) string {
	month := c.PaymentMonth
	if month == "" {
		month = appmodels.FormatMonth(c.PaymentDate)
	}
	return fmt.Sprintf("💰 %s paid on %s\n👤 %s (%s)\n🗓 For %s",
		formatMoney(c.Amount),
		c.PaymentDate.Format("2006-01-02"),
		escapeHTML(c.Name),
		escapeHTML(c.Phone),
		month,
	)
}
