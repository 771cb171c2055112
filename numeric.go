package shardroute

import (
	"database/sql/driver"
	"math/big"

	"github.com/cockroachdb/errors"
)

// Numeric binds an arbitrary precision integer, such as a NUMERIC(78, 0)
// column, as a query parameter. Keys that fit in 64 bits route like any other
// integer.
type Numeric struct {
	I *big.Int
}

// UInt256 is a Numeric holding an unsigned 256 bit value.
type UInt256 struct {
	Numeric
}

// Value sends the number as decimal text so drivers never truncate it.
func (n Numeric) Value() (driver.Value, error) {
	if n.I == nil {
		return nil, nil
	}
	return n.I.String(), nil
}

func normalizeBigInt(i *big.Int) (any, error) {
	switch {
	case i == nil:
		return nil, errors.Wrap(ErrTypeMismatch, "null value")
	case i.IsInt64():
		return i.Int64(), nil
	case i.IsUint64():
		return i.Uint64(), nil
	}
	return nil, errors.Wrapf(ErrTypeMismatch, "%s overflows 64 bits", i)
}
