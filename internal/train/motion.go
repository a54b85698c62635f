package train

import (
	"encoding/json"
	"fmt"
	"math"
)

// MotionModel advances a train's fraction along its current segment.
// Adding a model only requires implementing this interface and registering
// it in MotionSpec.Build.
type MotionModel interface {
	// Name is the discriminator used in config and scenario files.
	Name() string
	// Advance returns the new segment fraction after dt seconds, starting
	// from t in [0,1). Values >= 1 mean the train reached the next station.
	Advance(t, dt float64) float64
}

// ConstantModelName is the discriminator for ConstantRate.
const ConstantModelName = "constant"

// ConstantRate covers a fixed fraction of a segment per second regardless of
// segment length.
type ConstantRate struct {
	Rate float64 `json:"rate" yaml:"rate"` // segments per second
}

func (ConstantRate) Name() string { return ConstantModelName }

func (c ConstantRate) Advance(t, dt float64) float64 { return t + dt*c.Rate }

// AcceleratingModelName is the discriminator for ConstantAcceleration.
const AcceleratingModelName = "accelerating"

// ConstantAcceleration pulls away from each station at a fixed acceleration,
// cruises at MaxRate and brakes into the next station. Units are segments,
// so every segment takes the same time regardless of its drawn length.
type ConstantAcceleration struct {
	Accel   float64 // segments/s²
	Decel   float64 // segments/s², positive
	MaxRate float64 // segments/s
}

func (ConstantAcceleration) Name() string { return AcceleratingModelName }

// creep keeps a train that braked to a halt short of the platform moving.
func (c ConstantAcceleration) creep() float64 { return c.MaxRate / 20 }

// velocityAt is the speed profile: limited by the run-up from the last
// station, the line speed and the stopping distance to the next station.
func (c ConstantAcceleration) velocityAt(t float64) float64 {
	return min(c.MaxRate, math.Sqrt(2*c.Accel*t), math.Sqrt(2*c.Decel*max(0, 1-t)))
}

// BrakingDistance is the fraction of a segment needed to stop from v.
func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	return v * v / (2 * c.Decel)
}

// AccelerateStep returns the distance covered over dt while accelerating
// from v toward targetV, cruising once targetV is reached mid-step.
func (c ConstantAcceleration) AccelerateStep(v, targetV, dt float64) (dist, newV float64) {
	if v >= targetV {
		return targetV * dt, targetV
	}
	tToTarget := (targetV - v) / c.Accel
	if tToTarget <= dt {
		s1 := v*tToTarget + 0.5*c.Accel*tToTarget*tToTarget
		return s1 + targetV*(dt-tToTarget), targetV
	}
	return v*dt + 0.5*c.Accel*dt*dt, v + c.Accel*dt
}

// DecelerateStep returns the distance covered over dt while braking from v
// to a stand.
func (c ConstantAcceleration) DecelerateStep(v, dt float64) (dist, newV float64) {
	tToStop := v / c.Decel
	if tToStop <= dt {
		return v * tToStop / 2, 0
	}
	return v*dt - 0.5*c.Decel*dt*dt, v - c.Decel*dt
}

func (c ConstantAcceleration) Advance(t, dt float64) float64 {
	v := c.velocityAt(t)
	var dist float64
	if c.BrakingDistance(v) >= 1-t {
		dist, _ = c.DecelerateStep(v, dt)
	} else {
		dist, _ = c.AccelerateStep(v, c.MaxRate, dt)
	}
	return t + max(dist, c.creep()*dt)
}

// MotionSpec is the serialisable form of a MotionModel. Model selects the
// implementation; remaining fields are forwarded to it.
type MotionSpec struct {
	Model string  `json:"model" yaml:"model" validate:"required"`
	Rate  float64 `json:"rate" yaml:"rate" validate:"gte=0"` // constant: segments/s; accelerating: top speed
	Accel float64 `json:"accel,omitempty" yaml:"accel" validate:"gte=0"`
	Decel float64 `json:"decel,omitempty" yaml:"decel" validate:"gte=0"`
}

// DefaultMotion is a constant 0.25 segments per second.
func DefaultMotion() MotionSpec {
	return MotionSpec{Model: ConstantModelName, Rate: 0.25}
}

// Build resolves the discriminator into a concrete model.
//
// Supported models:
//   - "constant": fixed segment rate.
//   - "accelerating": accel/decel ramps up to a top rate.
func (s MotionSpec) Build() (MotionModel, error) {
	switch s.Model {
	case ConstantModelName:
		if s.Rate <= 0 {
			return nil, fmt.Errorf("constant motion: rate must be positive, got %v", s.Rate)
		}
		return ConstantRate{Rate: s.Rate}, nil
	case AcceleratingModelName:
		if s.Rate <= 0 || s.Accel <= 0 || s.Decel <= 0 {
			return nil, fmt.Errorf("accelerating motion: rate, accel and decel must be positive")
		}
		return ConstantAcceleration{Accel: s.Accel, Decel: s.Decel, MaxRate: s.Rate}, nil
	default:
		return nil, fmt.Errorf("unknown motion model %q", s.Model)
	}
}

// UnmarshalJSON requires the "model" discriminator to be present.
func (s *MotionSpec) UnmarshalJSON(data []byte) error {
	type raw MotionSpec
	var aux raw
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Model == "" {
		return fmt.Errorf("motion: missing \"model\" field")
	}
	*s = MotionSpec(aux)
	return nil
}
