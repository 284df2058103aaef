package brightness

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Setter writes a brightness value to the device. It reports false when the
// device rejected the value.
type Setter interface {
	Set(ctx context.Context, value uint8) (bool, error)
}

// Outcome describes how a transition ended
type Outcome int

const (
	OutcomeUnchanged Outcome = iota // Already at target, nothing sent
	OutcomeComplete                 // Every step accepted
	OutcomeAborted                  // Device rejected a step, remaining steps skipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeComplete:
		return "complete"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result reports a finished transition
type Result struct {
	Outcome Outcome
	Applied []uint8 // Values the device accepted, in order
	Planned int
}

// Transition ramps a device from one brightness to another in bounded steps
type Transition struct {
	device  Setter
	step    uint8
	limiter *rate.Limiter
}

// NewTransition creates a transition engine. A positive delay paces steps so
// that consecutive writes are at least delay apart.
func NewTransition(device Setter, step uint8, delay time.Duration) *Transition {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Transition{
		device:  device,
		step:    step,
		limiter: limiter,
	}
}

// Run moves the device from current to target. A rejected step stops the ramp
// and is reported through the result; only transport errors are returned.
func (t *Transition) Run(ctx context.Context, current, target uint8) (Result, error) {
	values := Steps(current, target, t.step)
	result := Result{Planned: len(values)}
	if len(values) == 0 {
		log.Debug().Uint8("brightness", current).Msg("Brightness already at target")
		return result, nil
	}

	log.Info().
		Uint8("from", current).
		Uint8("to", target).
		Int("steps", len(values)).
		Msg("Changing brightness")

	for _, value := range values {
		if err := t.limiter.Wait(ctx); err != nil {
			return result, err
		}

		ok, err := t.device.Set(ctx, value)
		if err != nil {
			return result, err
		}
		if !ok {
			log.Warn().
				Uint8("value", value).
				Int("applied", len(result.Applied)).
				Int("planned", len(values)).
				Msg("Brightness not changed, transition stopped")
			result.Outcome = OutcomeAborted
			return result, nil
		}
		result.Applied = append(result.Applied, value)
	}

	result.Outcome = OutcomeComplete
	return result, nil
}

// Steps returns the values sent to move from current to target. Values run
// over [min(current, target), max(current, target)] at multiples of step from
// the low end, descending when current > target. The target is appended when
// the sampling does not land on it, so a ramp always ends at target.
func Steps(current, target, step uint8) []uint8 {
	if current == target {
		return nil
	}
	if step == 0 {
		return []uint8{target}
	}

	lo, hi := int(min(current, target)), int(max(current, target))
	values := make([]uint8, 0, (hi-lo)/int(step)+2)
	for v := lo; v <= hi; v += int(step) {
		values = append(values, uint8(v))
	}
	if current > target {
		slices.Reverse(values)
	}
	if values[len(values)-1] != target {
		values = append(values, target)
	}
	return values
}
