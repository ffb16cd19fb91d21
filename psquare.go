package coost

// quantileEstimator implements the P² (P-Square) algorithm for streaming
// quantile estimation: O(1) per observation, O(1) to read back the current
// estimate, no sample retention. Used by [schedulerMetrics] to track resume-latency
// percentiles per scheduler without paying for a sort on every sample.
//
// Reference: Jain, R. and Chlamtac, I. (1985), "The P² Algorithm for
// Dynamic Calculation of Quantiles and Histograms Without Storing
// Observations", Communications of the ACM 28(10).
//
// Not safe for concurrent use; callers serialize access (here, behind
// [schedulerMetrics]' own mutex).
type quantileEstimator struct {
	p float64

	q  [5]float64 // marker heights
	n  [5]int     // marker positions
	np [5]float64 // desired marker positions
	dn [5]float64 // increments to desired positions

	count int
	seed  [5]float64 // buffered observations before the estimator activates
}

func newQuantileEstimator(p float64) *quantileEstimator {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return &quantileEstimator{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

// observe folds a new sample into the estimate.
func (e *quantileEstimator) observe(x float64) {
	e.count++
	if e.count <= 5 {
		e.seed[e.count-1] = x
		if e.count == 5 {
			e.activate()
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			adjusted := e.parabolic(i, sign)
			if e.q[i-1] < adjusted && adjusted < e.q[i+1] {
				e.q[i] = adjusted
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *quantileEstimator) activate() {
	seed := e.seed
	for i := 1; i < 5; i++ {
		key := seed[i]
		j := i - 1
		for j >= 0 && seed[j] > key {
			seed[j+1] = seed[j]
			j--
		}
		seed[j+1] = key
	}
	for i := 0; i < 5; i++ {
		e.q[i] = seed[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
}

func (e *quantileEstimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni, niPrev, niNext := float64(e.n[i]), float64(e.n[i-1]), float64(e.n[i+1])
	t1 := df / (niNext - niPrev)
	t2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	t3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)
	return e.q[i] + t1*(t2+t3)
}

func (e *quantileEstimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

// value returns the current quantile estimate.
func (e *quantileEstimator) value() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := append([]float64(nil), e.seed[:e.count]...)
		for i := 1; i < len(sorted); i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		idx := int(float64(e.count-1) * e.p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return e.q[2]
}
