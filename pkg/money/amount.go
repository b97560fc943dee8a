package money

import (
	"encoding/json"
	"fmt"
)

// Amount is the JSON boundary form of Cents. It marshals as a decimal
// string ("45.00") so clients never see raw cent integers.
type Amount Cents

func (a Amount) Cents() Cents {
	return Cents(a)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(Cents(a).String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("amount must be a decimal string: %w", err)
	}
	cents, err := FromDecimalString(raw)
	if err != nil {
		return err
	}
	*a = Amount(cents)
	return nil
}
