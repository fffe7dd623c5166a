package abtest

import "math"

// studentTCDF returns P(T <= t) for a Student's t distribution with df
// degrees of freedom, via the regularized incomplete beta function. This
// is the standard reduction (Abramowitz & Stegun 26.7.1) used to compute
// t-distribution tail probabilities without a dedicated stats library.
func studentTCDF(t, df float64) float64 {
	x := df / (df + t*t)
	ib := regularizedIncompleteBeta(x, df/2, 0.5)
	if t > 0 {
		return 1 - 0.5*ib
	}
	return 0.5 * ib
}

// twoTailedPValue returns P(|T| >= |t|) for a Student's t distribution
// with df degrees of freedom.
func twoTailedPValue(t, df float64) float64 {
	t = math.Abs(t)
	return 2 * (1 - studentTCDF(t, df))
}

// regularizedIncompleteBeta computes I_x(a, b) via a continued-fraction
// expansion (Numerical Recipes §6.4), valid for x in [0,1].
func regularizedIncompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lbeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(lbeta + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betacf(x, a, b) / a
	}
	return 1 - front*betacf(1-x, b, a)/b
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// betacf evaluates the continued fraction for the incomplete beta
// function using the modified Lentz algorithm.
func betacf(x, a, b float64) float64 {
	const maxIter = 200
	const epsilon = 3e-10
	const tiny = 1e-300

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		mf := float64(m)
		m2 := 2 * mf

		aa := mf * (b - mf) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + mf) * (qab + mf) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}

	return h
}
