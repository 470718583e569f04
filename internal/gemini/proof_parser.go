package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// ParseProofTimeout is the timeout for Gemini API calls.
const ParseProofTimeout = 30 * time.Second

// ErrParseTimeout indicates the Gemini API call timed out.
var ErrParseTimeout = errors.New("proof of payment parsing timed out")

// ErrNoData indicates no usable data could be extracted from the image.
var ErrNoData = errors.New("no usable data extracted from proof of payment")

// ProofData is what could be read off a bank transfer confirmation.
type ProofData struct {
	Amount     decimal.Decimal
	Date       time.Time
	Reference  string
	Bank       string
	Payer      string
	Confidence float64
}

// HasAmount returns true if the amount was extracted.
func (p *ProofData) HasAmount() bool {
	return p.Amount.IsPositive()
}

// HasDate returns true if the payment date was extracted.
func (p *ProofData) HasDate() bool {
	return !p.Date.IsZero()
}

// IsEmpty returns true if neither amount nor date was extracted.
func (p *ProofData) IsEmpty() bool {
	return !p.HasAmount() && !p.HasDate()
}

type proofResponse struct {
	Amount     string  `json:"amount"`
	Date       string  `json:"date"`
	Reference  string  `json:"reference"`
	Bank       string  `json:"bank"`
	Payer      string  `json:"payer"`
	Confidence float64 `json:"confidence"`
}

// ParseProof extracts payment details from a proof-of-payment image.
func (c *Client) ParseProof(ctx context.Context, imageBytes []byte, mimeType string) (*ProofData, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("image data is required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, ParseProofTimeout)
	defer cancel()

	text, err := c.generateText(timeoutCtx, []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageBytes}},
		{Text: proofPrompt},
	}, &genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrParseTimeout
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	data, err := parseProofResponse(text)
	if err != nil {
		return nil, err
	}
	if data.IsEmpty() {
		return nil, ErrNoData
	}
	return data, nil
}

const proofPrompt = `This image is a proof of payment (bank transfer confirmation, EFT slip or banking app screenshot) for a savings club contribution in South African Rand.
Return ONLY a JSON object with no additional text or markdown formatting.

Fields:
- amount: the amount transferred (numeric string, e.g., "300.00")
- date: the payment date in YYYY-MM-DD format
- reference: the payment reference or beneficiary reference text
- bank: the paying bank's name
- payer: the account holder or payer name, if shown
- confidence: your confidence in the extraction accuracy (0.0 to 1.0)

If a field cannot be determined, use an empty string for text fields, "0" for amount, or 0.0 for confidence.

Example response:
{"amount": "300.00", "date": "2025-03-05", "reference": "TRF-7KQ2MX", "bank": "Capitec", "payer": "T Mokoena", "confidence": 0.9}`

// extractJSON trims markdown fences and surrounding chatter from a model response.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

func parseProofResponse(response string) (*ProofData, error) {
	var pr proofResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &pr); err != nil {
		return nil, fmt.Errorf("failed to parse proof response: %w", err)
	}

	data := &ProofData{
		Reference:  strings.TrimSpace(pr.Reference),
		Bank:       strings.TrimSpace(pr.Bank),
		Payer:      strings.TrimSpace(pr.Payer),
		Confidence: pr.Confidence,
	}

	amount := strings.NewReplacer("R", "", ",", "", " ", "").Replace(strings.TrimSpace(pr.Amount))
	if amount != "" && amount != "0" {
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", pr.Amount, err)
		}
		data.Amount = parsed
	}

	if pr.Date != "" {
		if date, err := time.Parse("2006-01-02", strings.TrimSpace(pr.Date)); err == nil {
			data.Date = date
		}
	}

	return data, nil
}
