package calc

import (
	"fmt"
	"math"
	"math/big"
)

func add(a, b Value) Value {
	if a.isFloat || b.isFloat {
		return Float(a.Float64() + b.Float64())
	}
	return Value{i: new(big.Int).Add(a.i, b.i)}
}

func subtract(a, b Value) Value {
	if a.isFloat || b.isFloat {
		return Float(a.Float64() - b.Float64())
	}
	return Value{i: new(big.Int).Sub(a.i, b.i)}
}

func multiply(a, b Value) (Value, error) {
	if a.isFloat || b.isFloat {
		return Float(a.Float64() * b.Float64()), nil
	}
	if a.i.BitLen()+b.i.BitLen() > maxResultBits {
		return Value{}, errResultTooLarge
	}
	return Value{i: new(big.Int).Mul(a.i, b.i)}, nil
}

func negate(v Value) Value {
	if v.isFloat {
		return Float(-v.f)
	}
	return Value{i: new(big.Int).Neg(v.i)}
}

func isZero(v Value) bool {
	if v.isFloat {
		return v.f == 0
	}
	return v.i.Sign() == 0
}

// divide is true division and always yields a float
func divide(a, b Value) (Value, error) {
	if isZero(b) {
		return Value{}, fmt.Errorf("division by zero")
	}

	if !a.isFloat && !b.isFloat {
		f, _ := new(big.Rat).SetFrac(a.i, b.i).Float64()
		return Float(f), nil
	}
	return Float(a.Float64() / b.Float64()), nil
}

// floorDivide rounds the quotient toward negative infinity
func floorDivide(a, b Value) (Value, error) {
	if isZero(b) {
		if a.isFloat || b.isFloat {
			return Value{}, fmt.Errorf("float floor division by zero")
		}
		return Value{}, fmt.Errorf("integer division or modulo by zero")
	}

	if a.isFloat || b.isFloat {
		return Float(math.Floor(a.Float64() / b.Float64())), nil
	}

	q, r := new(big.Int).QuoRem(a.i, b.i, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.i.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return Value{i: q}, nil
}

// modulo takes the sign of the divisor
func modulo(a, b Value) (Value, error) {
	if isZero(b) {
		if a.isFloat || b.isFloat {
			return Value{}, fmt.Errorf("float modulo")
		}
		return Value{}, fmt.Errorf("integer division or modulo by zero")
	}

	if a.isFloat || b.isFloat {
		x, y := a.Float64(), b.Float64()
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return Float(r), nil
	}

	_, r := new(big.Int).QuoRem(a.i, b.i, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.i.Sign() < 0) {
		r.Add(r, b.i)
	}
	return Value{i: r}, nil
}

var errResultTooLarge = fmt.Errorf("result too large")

// powFits reports whether base**exponent, for |base| > 1, stays within
// maxResultBits. The result has at least (BitLen(base)-1)*exponent+1 bits.
func powFits(base, exponent *big.Int) bool {
	if exponent.Cmp(big.NewInt(maxResultBits)) > 0 {
		return false
	}
	return int64(base.BitLen()-1)*exponent.Int64()+1 <= maxResultBits
}

func pow(base, exponent Value) (Value, error) {
	if !base.isFloat && !exponent.isFloat && exponent.i.Sign() >= 0 {
		if base.i.CmpAbs(big.NewInt(1)) > 0 && !powFits(base.i, exponent.i) {
			return Value{}, errResultTooLarge
		}
		return Value{i: new(big.Int).Exp(base.i, exponent.i, nil)}, nil
	}

	x, y := base.Float64(), exponent.Float64()
	if x == 0 && y < 0 {
		return Value{}, fmt.Errorf("0.0 cannot be raised to a negative power")
	}
	if x < 0 && y != math.Trunc(y) {
		return Value{}, fmt.Errorf("negative number cannot be raised to a fractional power")
	}

	result := math.Pow(x, y)
	if math.IsInf(result, 0) && !math.IsInf(x, 0) {
		return Value{}, fmt.Errorf("numerical result out of range")
	}
	return Float(result), nil
}
