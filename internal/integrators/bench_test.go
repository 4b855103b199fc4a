package integrators

import (
	"testing"

	"github.com/san-kum/thermloop/internal/thermal"
)

func benchNetwork(n int) []*thermal.ControlVolume {
	cvs := make([]*thermal.ControlVolume, n)
	for i := range cvs {
		cvs[i] = heated(float64(i%31) + 1)
	}
	return cvs
}

func BenchmarkStabilitySerial(b *testing.B) {
	cvs := benchNetwork(20000)
	sc := NewStabilityController(5, 1e-6, 1)
	sc.ParallelThreshold = 0

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sc.MaxStableStep(cvs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStabilityParallel(b *testing.B) {
	cvs := benchNetwork(20000)
	sc := NewStabilityController(5, 1e-6, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sc.MaxStableStep(cvs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEuler(b *testing.B) {
	cvs := benchNetwork(1000)
	items := make([]Advancer, len(cvs))
	for i, cv := range cvs {
		items[i] = cv
	}
	integrator := NewEuler()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := integrator.Step(items, 1e-6); err != nil {
			b.Fatal(err)
		}
	}
}
