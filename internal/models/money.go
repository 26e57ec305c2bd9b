package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Money is a decimal amount. It is stored in BSON as a decimal string so that
// sums never pick up binary floating point error.
type Money struct {
	decimal.Decimal
}

// ZeroMoney is the additive identity.
var ZeroMoney = Money{decimal.Zero}

// NewMoney parses an amount such as "149.90".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Money{d}, nil
}

// MustMoney is NewMoney for literals known to be valid.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{m.Decimal.Add(o.Decimal)}
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.Decimal.IsNegative()
}

// Equal compares amounts numerically, so "100" equals "100.00".
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// MarshalBSONValue stores the amount as a string.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.Decimal.String())
}

// UnmarshalBSONValue accepts the string form written by MarshalBSONValue.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	s, ok := raw.StringValueOK()
	if !ok {
		return fmt.Errorf("money: cannot decode BSON %s", t)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.Decimal = d
	return nil
}
