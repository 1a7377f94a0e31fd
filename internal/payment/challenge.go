package payment

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// wireAmount accepts the amount field as either a JSON string or a bare
// number. Either way it must be a non-negative integer; amounts are minor
// units and never parsed through floats.
type wireAmount struct {
	value *big.Int
}

func (a *wireAmount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}

	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount %q is not a decimal integer", s)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("amount %q is negative", s)
	}

	a.value = value
	return nil
}

// challengeTerms is one terms entry on the wire. Both challenge shapes
// decode into it; field aliases cover the naming differences.
type challengeTerms struct {
	PayTo          string     `json:"payTo"`
	Recipient      string     `json:"recipient"`
	Amount         wireAmount `json:"amount"`
	MaxAmount      wireAmount `json:"maxAmountRequired"`
	Asset          string     `json:"asset"`
	TokenType      string     `json:"tokenType"`
	Network        string     `json:"network"`
	Scheme         string     `json:"scheme"`
	FacilitatorURL string     `json:"facilitatorUrl"`
}

type challengeBody struct {
	Accepts             []challengeTerms `json:"accepts"`
	PaymentRequirements *challengeTerms  `json:"paymentRequirements"`
}

// ParseChallenge normalizes a 402 response body into a PaymentChallenge.
// Two wire shapes exist: an `accepts` array (first entry wins) and a single
// `paymentRequirements` object. Bodies with neither, or with incomplete
// terms, yield ErrMalformedChallenge. An asset other than STX (empty means
// STX) yields ErrUnsupportedAsset.
func ParseChallenge(body []byte) (*PaymentChallenge, error) {
	var wire challengeBody
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}

	var terms *challengeTerms
	switch {
	case len(wire.Accepts) > 0:
		terms = &wire.Accepts[0]
	case wire.PaymentRequirements != nil:
		terms = wire.PaymentRequirements
	default:
		return nil, fmt.Errorf("%w: no payment terms present", ErrMalformedChallenge)
	}

	payTo := terms.PayTo
	if payTo == "" {
		payTo = terms.Recipient
	}

	amount := terms.Amount.value
	if amount == nil {
		amount = terms.MaxAmount.value
	}

	if payTo == "" || amount == nil {
		return nil, fmt.Errorf("%w: missing recipient or amount", ErrMalformedChallenge)
	}

	asset := terms.Asset
	if asset == "" {
		asset = terms.TokenType
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		asset = "STX"
	}
	if asset != "STX" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}

	return &PaymentChallenge{
		PayTo:          payTo,
		Amount:         amount,
		Asset:          asset,
		Network:        terms.Network,
		Scheme:         terms.Scheme,
		FacilitatorURL: terms.FacilitatorURL,
	}, nil
}
