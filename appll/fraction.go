package appll

// NearestFraction finds the best approximation c/d of a/b with d <= maxDenominator.
// It returns c, d and the residual a/b - c/d.
//
// The approximation is the deepest convergent of the continued fraction of a/b
// whose denominator still fits. Convergents are the best rational approximations
// for their denominator, which matters when picking divider settings: the
// register only holds an 8-bit numerator and denominator.
func NearestFraction(a, b, maxDenominator uint64) (c, d uint64, eps float64) {
	c, d = continuedFraction(a, b, 0, 1, maxDenominator)
	eps = float64(a)/float64(b) - float64(c)/float64(d)
	return c, d, eps
}

// continuedFraction expands a/b = term + 1/cf(b, a mod b) recursively.
// e and f carry the denominators of the two previous convergents so the
// recursion can stop before the next denominator exceeds the limit.
func continuedFraction(a, b, e, f, maxDenominator uint64) (c, d uint64) {
	term := a / b
	denom := f + term*e
	if denom > maxDenominator {
		return 1, 0
	}
	rem := a - term*b
	if rem == 0 {
		return term, 1
	}
	cx, dx := continuedFraction(b, rem, denom, e, maxDenominator)
	return term*cx + dx, cx
}
