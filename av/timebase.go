package av

import (
	"fmt"
	"math"
	"math/big"
)

// NoPTS marks an unknown timestamp. It is never rescaled.
const NoPTS = int64(math.MinInt64)

// Rational is a time unit: one tick lasts Num/Den seconds.
type Rational struct {
	Num, Den int
}

// EngineTimeBase is the fixed time unit of every codec engine, 1/1000000 s.
var EngineTimeBase = Rational{1, 1000000}

func (self Rational) String() string {
	return fmt.Sprintf("%d/%d", self.Num, self.Den)
}

func (self Rational) Valid() bool {
	return self.Num != 0 && self.Den != 0
}

// Float returns the unit length in seconds.
func (self Rational) Float() float64 {
	if self.Den == 0 {
		return 0
	}
	return float64(self.Num) / float64(self.Den)
}

// Invert returns Den/Num, e.g. a frame rate turned into a frame duration.
func (self Rational) Invert() Rational {
	return Rational{self.Den, self.Num}
}

// Rescale converts ts from time unit src to time unit dst.
//
// The result is ts * src.Num * dst.Den / (src.Den * dst.Num) computed exactly
// and rounded to the nearest integer, halfway cases away from zero. Equal
// units and NoPTS leave ts unchanged.
func Rescale(ts int64, src, dst Rational) int64 {
	if ts == NoPTS || src == dst {
		return ts
	}
	if !src.Valid() || !dst.Valid() {
		panic(fmt.Sprintf("av: Rescale with invalid time unit src=%s dst=%s", src, dst))
	}

	num := new(big.Int).SetInt64(ts)
	num.Mul(num, big.NewInt(int64(src.Num)))
	num.Mul(num, big.NewInt(int64(dst.Den)))
	den := new(big.Int).Mul(big.NewInt(int64(src.Den)), big.NewInt(int64(dst.Num)))
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}

	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	// |2r| >= den rounds away from zero
	r.Abs(r)
	r.Lsh(r, 1)
	if r.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}

	if !q.IsInt64() {
		if q.Sign() < 0 {
			return math.MinInt64 + 1
		}
		return math.MaxInt64
	}
	return q.Int64()
}

// Rescale converts the timestamps and duration of the packet from time unit
// src to time unit dst.
func (self *Packet) Rescale(src, dst Rational) {
	self.PTS = Rescale(self.PTS, src, dst)
	self.DTS = Rescale(self.DTS, src, dst)
	if self.Duration > 0 {
		self.Duration = Rescale(self.Duration, src, dst)
	}
}
