package regimen

import (
	"context"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// Axis is a closed dose range sampled at evenly spaced points.
type Axis struct {
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Steps int     `json:"steps" yaml:"steps"`
}

// Validate checks the axis describes a sampleable range.
func (a Axis) Validate() error {
	if math.IsNaN(a.Min) || math.IsInf(a.Min, 0) || math.IsNaN(a.Max) || math.IsInf(a.Max, 0) {
		return &models.InvalidArgumentError{Field: "axis", Reason: "bounds must be finite"}
	}
	if a.Min < 0 {
		return &models.InvalidArgumentError{Field: "axis", Reason: fmt.Sprintf("doses cannot be negative, got min %v", a.Min)}
	}
	if a.Max < a.Min {
		return &models.InvalidArgumentError{Field: "axis", Reason: fmt.Sprintf("max %v below min %v", a.Max, a.Min)}
	}
	if a.Steps < 1 {
		return &models.InvalidArgumentError{Field: "axis", Reason: "at least one step is required"}
	}
	if a.Steps > 1 && a.Max == a.Min {
		return &models.InvalidArgumentError{Field: "axis", Reason: "a degenerate range cannot hold multiple steps"}
	}
	return nil
}

// Values expands the axis into its grid points.
func (a Axis) Values() []float64 {
	if a.Steps == 1 {
		return []float64{a.Min}
	}
	return floats.Span(make([]float64, a.Steps), a.Min, a.Max)
}

// SurfacePoint is one grid evaluation of the dose plane.
type SurfacePoint struct {
	RepeatedDoseMg float64 `json:"repeated_dose_mg"`
	LoadingDoseMg  float64 `json:"loading_dose_mg"`
	Margin         float64 `json:"margin"`
	Objective      float64 `json:"objective"`
}

// evaluateSurface scores the objective over the dose grid with a bounded
// worker pool. Points come back in row-major order, repeated dose outer and
// loading dose inner. The first evaluation error cancels the remaining work;
// points already finished are returned alongside the error.
func evaluateSurface(ctx context.Context, obj Objective, repeated, loading Axis, maxParallel int) ([]SurfacePoint, error) {
	if err := repeated.Validate(); err != nil {
		return nil, err
	}
	if err := loading.Validate(); err != nil {
		return nil, err
	}
	if err := obj.Evaluator.Validate(); err != nil {
		return nil, err
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repeatedValues := repeated.Values()
	loadingValues := loading.Values()

	type cell struct {
		point SurfacePoint
		done  bool
	}
	cells := make([]cell, len(repeatedValues)*len(loadingValues))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, maxParallel)
	for i, dr := range repeatedValues {
		for j, dl := range loadingValues {
			idx := i*len(loadingValues) + j
			wg.Add(1)
			go func(idx int, dr, dl float64) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				if ctx.Err() != nil {
					return
				}
				objective, margin, err := obj.Value(dr, dl)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancel()
					return
				}
				cells[idx] = cell{
					point: SurfacePoint{
						RepeatedDoseMg: dr,
						LoadingDoseMg:  dl,
						Margin:         margin,
						Objective:      objective,
					},
					done: true,
				}
			}(idx, dr, dl)
		}
	}
	wg.Wait()

	points := make([]SurfacePoint, 0, len(cells))
	for _, c := range cells {
		if c.done {
			points = append(points, c.point)
		}
	}
	if firstErr != nil {
		return points, firstErr
	}
	if err := ctx.Err(); err != nil {
		return points, err
	}
	return points, nil
}
