package leaderrotation

import "math/big"

// cappedLCM returns the least common multiple of values, or false if it exceeds limit.
func cappedLCM(limit uint64, values ...*big.Int) (uint64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	capBig := new(big.Int).SetUint64(limit)
	lcm := new(big.Int).Set(values[0])
	if lcm.Sign() <= 0 || lcm.Cmp(capBig) > 0 {
		return 0, false
	}
	gcd := new(big.Int)
	for _, v := range values[1:] {
		if v.Sign() <= 0 {
			return 0, false
		}
		gcd.GCD(nil, nil, lcm, v)
		lcm.Mul(lcm, v)
		lcm.Quo(lcm, gcd)
		if lcm.Cmp(capBig) > 0 {
			return 0, false
		}
	}
	return lcm.Uint64(), true
}

// gcdOf returns the greatest common divisor of values.
func gcdOf(values ...*big.Int) *big.Int {
	gcd := new(big.Int)
	for _, v := range values {
		gcd.GCD(nil, nil, gcd, v)
	}
	return gcd
}
