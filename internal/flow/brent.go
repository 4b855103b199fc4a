package flow

import (
	"math"

	"github.com/san-kum/thermloop/internal/dynamo"
)

const eps = 2.220446049250313e-16

// brent finds a root of g in [a, b] given fa = g(a) and fb = g(b) of opposite
// sign. It returns the root estimate and g there.
func brent(g func(float64) (float64, error), a, b, fa, fb, tol float64, maxIter int) (float64, float64, error) {
	if fa == 0 {
		return a, fa, nil
	}
	if fb == 0 {
		return b, fb, nil
	}
	if fa*fb > 0 {
		return 0, 0, dynamo.ErrNoBracket
	}

	c, fc := b, fb
	var d, e float64
	for i := 0; i < maxIter; i++ {
		if (fb > 0 && fc > 0) || (fb < 0 && fc < 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, fb, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// inverse quadratic interpolation, or secant when only two points differ
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		var err error
		if fb, err = g(b); err != nil {
			return 0, 0, err
		}
	}
	return b, fb, dynamo.ErrNotConverged
}
