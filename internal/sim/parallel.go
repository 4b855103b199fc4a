package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/thermloop/internal/integrators"
)

// Sweep runs independent copies of a facility concurrently, one per set of
// setpoints. Each case gets a freshly built network, so Build must not share
// mutable state between calls.
type Sweep struct {
	Build    func() (*Network, error)
	Timestep func() integrators.Timestep
	Logger   *logrus.Logger
}

// Run returns one result per case, in order. Cases always run fast-forward.
func (s *Sweep) Run(ctx context.Context, cases []Setpoints, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(cases))
	errs := make([]error, len(cases))

	var wg sync.WaitGroup
	for i := range cases {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			net, err := s.Build()
			if err != nil {
				errs[idx] = err
				return
			}
			sp := cases[idx]
			sp.FastForward = true
			o, err := New(net, NewSetpointStore(sp), s.Timestep(), s.Logger)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = o.Run(ctx, cfg)
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sweep case %d: %w", i, err)
		}
	}

	return results, nil
}
