// ABOUTME: Simulated sensors that stand in for hardware drivers.
// ABOUTME: Random walk toward a context-dependent target for each metric.
package sensor

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/harperreed/vitalsync/internal/models"
)

type profile struct {
	heartRate   float64
	temperature float64
	motion      float64
}

var profiles = map[models.Context]profile{
	models.ContextResting:    {heartRate: 68, temperature: 36.6, motion: 0.02},
	models.ContextWalking:    {heartRate: 95, temperature: 36.8, motion: 0.3},
	models.ContextRunning:    {heartRate: 145, temperature: 37.4, motion: 1.2},
	models.ContextExercising: {heartRate: 125, temperature: 37.2, motion: 0.8},
}

// Simulator drives a set of simulated sources from one shared activity
// context. It is safe for concurrent use.
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	context models.Context
	state   map[string]float64
}

// NewSimulator creates a simulator seeded with seed, starting at rest.
func NewSimulator(seed uint64) *Simulator {
	p := profiles[models.ContextResting]
	return &Simulator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		context: models.ContextResting,
		state: map[string]float64{
			models.MetricHeartRate:       p.heartRate,
			models.MetricBodyTemperature: p.temperature,
			models.MetricAccelX:          0,
			models.MetricAccelY:          0,
			models.MetricAccelZ:          1,
		},
	}
}

// SetContext changes the activity the simulated body is performing.
func (s *Simulator) SetContext(c models.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = c
}

// Context returns the current simulated activity.
func (s *Simulator) Context() models.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Sources returns one source per default metric.
func (s *Simulator) Sources() []Source {
	sources := make([]Source, 0, len(models.DefaultMetrics))
	for _, m := range models.DefaultMetrics {
		sources = append(sources, simulatedSource{sim: s, metric: m})
	}
	return sources
}

func (s *Simulator) read(metric string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := profiles[s.context]
	if !ok {
		p = profiles[models.ContextResting]
	}

	switch metric {
	case models.MetricHeartRate:
		s.state[metric] = drift(s.state[metric], p.heartRate, 0.2, 1.5, s.rng)
	case models.MetricBodyTemperature:
		s.state[metric] = drift(s.state[metric], p.temperature, 0.05, 0.02, s.rng)
	case models.MetricAccelZ:
		s.state[metric] = 1 + s.rng.NormFloat64()*p.motion
	default:
		s.state[metric] = s.rng.NormFloat64() * p.motion
	}
	return s.state[metric]
}

// drift moves current a fraction of the way toward target plus Gaussian noise.
func drift(current, target, pull, noise float64, rng *rand.Rand) float64 {
	return current + (target-current)*pull + rng.NormFloat64()*noise
}

type simulatedSource struct {
	sim    *Simulator
	metric string
}

func (s simulatedSource) Metric() string { return s.metric }

func (s simulatedSource) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.sim.read(s.metric), nil
}
