// ABOUTME: Activity context rotation for the producer loop.
// ABOUTME: Advances to the next context with a fixed chance on each tick.
package sensor

import (
	"math/rand/v2"

	"github.com/harperreed/vitalsync/internal/models"
)

// DefaultRotationChance is the per-tick chance of moving to the next context.
const DefaultRotationChance = 0.2

// Rotator walks models.AllContexts in order, advancing at random.
type Rotator struct {
	rng     *rand.Rand
	chance  float64
	current models.Context
}

// NewRotator creates a rotator that starts at rest and advances with the
// given chance per tick.
func NewRotator(seed uint64, chance float64) *Rotator {
	return &Rotator{
		rng:     rand.New(rand.NewPCG(seed, seed+1)),
		chance:  chance,
		current: models.ContextResting,
	}
}

// Current returns the context without advancing.
func (r *Rotator) Current() models.Context {
	return r.current
}

// Tick possibly advances and returns the context for this tick.
func (r *Rotator) Tick() models.Context {
	if r.rng.Float64() < r.chance {
		r.current = r.current.Next()
	}
	return r.current
}
