package kinetics

import (
	"fmt"
	"math"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// DoseEvent is one bolus administration into the central compartment.
type DoseEvent struct {
	TimeDays float64 `json:"time_days"`
	AmountMg float64 `json:"amount_mg"`
}

// Schedule is a validated, time-ordered list of bolus doses.
type Schedule struct {
	events []DoseEvent
}

// NewSchedule validates and wraps a list of dose events. Times must be
// non-negative, finite and strictly increasing; amounts non-negative and
// finite.
func NewSchedule(events []DoseEvent) (*Schedule, error) {
	for i, ev := range events {
		if math.IsNaN(ev.TimeDays) || math.IsInf(ev.TimeDays, 0) || ev.TimeDays < 0 {
			return nil, &models.InvalidArgumentError{
				Field:  "schedule",
				Reason: fmt.Sprintf("event %d: time must be non-negative and finite, got %v", i, ev.TimeDays),
			}
		}
		if i > 0 && ev.TimeDays <= events[i-1].TimeDays {
			return nil, &models.InvalidArgumentError{
				Field:  "schedule",
				Reason: fmt.Sprintf("event %d: times must be strictly increasing (%v after %v)", i, ev.TimeDays, events[i-1].TimeDays),
			}
		}
		if math.IsNaN(ev.AmountMg) || math.IsInf(ev.AmountMg, 0) || ev.AmountMg < 0 {
			return nil, &models.InvalidArgumentError{
				Field:  "schedule",
				Reason: fmt.Sprintf("event %d: amount must be non-negative and finite, got %v", i, ev.AmountMg),
			}
		}
	}

	s := &Schedule{events: make([]DoseEvent, len(events))}
	copy(s.events, events)
	return s, nil
}

// Events returns a copy of the dose events.
func (s *Schedule) Events() []DoseEvent {
	out := make([]DoseEvent, len(s.events))
	copy(out, s.events)
	return out
}

// TotalMassMg returns the administered mass summed over all events.
func (s *Schedule) TotalMassMg() float64 {
	var total float64
	for _, ev := range s.events {
		total += ev.AmountMg
	}
	return total
}

// NumScheduledDoses returns how many repeated doses span the coverage
// duration: ceil(coverage/interval), at least one. A small slack keeps an
// exact multiple from rounding up to a spurious extra dose.
func NumScheduledDoses(intervalDays, coverageDays float64) int {
	n := int(math.Ceil(coverageDays/intervalDays - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// BuildRegimen lays out the repeated dose every interval starting at time
// zero. The loading amount is an additional bolus folded into the first
// event, so the administered mass is numDoses*repeated + loading.
func BuildRegimen(repeatedDoseMg, loadingDoseMg, intervalDays, coverageDays float64) (*Schedule, error) {
	if math.IsNaN(intervalDays) || math.IsInf(intervalDays, 0) || intervalDays <= 0 {
		return nil, &models.InvalidArgumentError{
			Field:  "dosing_interval_days",
			Reason: fmt.Sprintf("must be positive and finite, got %v", intervalDays),
		}
	}
	if math.IsNaN(coverageDays) || math.IsInf(coverageDays, 0) || coverageDays <= 0 {
		return nil, &models.InvalidArgumentError{
			Field:  "coverage_duration_days",
			Reason: fmt.Sprintf("must be positive and finite, got %v", coverageDays),
		}
	}
	if math.IsNaN(repeatedDoseMg) || math.IsInf(repeatedDoseMg, 0) || repeatedDoseMg < 0 {
		return nil, &models.InvalidArgumentError{
			Field:  "dose_mg",
			Reason: fmt.Sprintf("must be non-negative and finite, got %v", repeatedDoseMg),
		}
	}
	if math.IsNaN(loadingDoseMg) || math.IsInf(loadingDoseMg, 0) || loadingDoseMg < 0 {
		return nil, &models.InvalidArgumentError{
			Field:  "loading_dose_mg",
			Reason: fmt.Sprintf("must be non-negative and finite, got %v", loadingDoseMg),
		}
	}

	n := NumScheduledDoses(intervalDays, coverageDays)
	events := make([]DoseEvent, n)
	for k := 0; k < n; k++ {
		events[k] = DoseEvent{TimeDays: float64(k) * intervalDays, AmountMg: repeatedDoseMg}
	}
	events[0].AmountMg += loadingDoseMg

	return NewSchedule(events)
}

// TroughTimes returns the observation instants of the protection criterion:
// the moment before each subsequent scheduled dose, plus the coverage end
// when it lies beyond the final dose.
func TroughTimes(intervalDays, coverageDays float64) []float64 {
	n := NumScheduledDoses(intervalDays, coverageDays)
	times := make([]float64, 0, n)
	for k := 1; k < n; k++ {
		times = append(times, float64(k)*intervalDays)
	}
	if last := float64(n-1) * intervalDays; coverageDays > last {
		times = append(times, coverageDays)
	}
	return times
}
