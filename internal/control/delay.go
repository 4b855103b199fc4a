package control

type sample struct {
	t, v float64
}

// delayLine returns the value pushed lag seconds ago, interpolating between
// samples. It returns zero until lag seconds have been recorded.
type delayLine struct {
	lag     float64
	samples []sample
}

func newDelayLine(lag float64) *delayLine {
	return &delayLine{lag: lag}
}

func (d *delayLine) push(t, v float64) float64 {
	if d.lag == 0 {
		return v
	}
	d.samples = append(d.samples, sample{t, v})

	target := t - d.lag
	if target < d.samples[0].t {
		return 0
	}

	// keep the newest sample at or before target
	i := 0
	for i+1 < len(d.samples) && d.samples[i+1].t <= target {
		i++
	}
	d.samples = d.samples[i:]

	a := d.samples[0]
	if len(d.samples) == 1 || a.t == target {
		return a.v
	}
	b := d.samples[1]
	return a.v + (b.v-a.v)*(target-a.t)/(b.t-a.t)
}
