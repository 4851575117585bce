package track

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"time"
)

const (
	// DefaultPositionStd is the default measurement noise of a box centre in
	// pixels
	DefaultPositionStd = 2.0
	// DefaultVelocityStd is the default process noise of the velocity in
	// pixels per second
	DefaultVelocityStd = 40.0
	// DefaultMaxCoast is how long a lost object is predicted for
	DefaultMaxCoast = time.Second
)

// state layout (x, y, vx, vy), velocity in pixels per second
const (
	stateDim = 4
	measDim  = 2
)

// Predictor estimates the position and velocity of the tracked object with a
// constant velocity Kalman filter, so the object can be followed through
// frames where it was not detected
type Predictor struct {
	stdPosition float64
	stdVelocity float64
	updateMat   *mat.Dense

	mean      *mat.VecDense
	cov       *mat.Dense
	last      time.Duration
	initiated bool
}

// NewPredictor returns a Predictor using the given measurement noise in
// pixels and velocity process noise in pixels per second
func NewPredictor(stdPosition, stdVelocity float64) *Predictor {

	// measurement only observes the position
	updateMat := mat.NewDense(measDim, stateDim, nil)

	for i := 0; i < measDim; i++ {
		updateMat.Set(i, i, 1)
	}

	return &Predictor{
		stdPosition: stdPosition,
		stdVelocity: stdVelocity,
		updateMat:   updateMat,
	}
}

// Reset forgets the tracked state
func (p *Predictor) Reset() {
	p.mean, p.cov = nil, nil
	p.last = 0
	p.initiated = false
}

// Initiated reports if the Predictor has received a measurement
func (p *Predictor) Initiated() bool {
	return p.initiated
}

// initiate starts tracking at a measured position with zero velocity
func (p *Predictor) initiate(ts time.Duration, pos r2.Vec) {

	p.mean = mat.NewVecDense(stateDim, []float64{pos.X, pos.Y, 0, 0})

	std := []float64{
		2 * p.stdPosition,
		2 * p.stdPosition,
		10 * p.stdVelocity,
		10 * p.stdVelocity,
	}

	p.cov = mat.NewDense(stateDim, stateDim, nil)

	for i, v := range std {
		p.cov.Set(i, i, v*v)
	}

	p.last = ts
	p.initiated = true
}

// motionMat returns the constant velocity transition over dt seconds
func motionMat(dt float64) *mat.Dense {

	m := mat.NewDense(stateDim, stateDim, nil)

	for i := 0; i < stateDim; i++ {
		m.Set(i, i, 1)
	}

	m.Set(0, 2, dt)
	m.Set(1, 3, dt)

	return m
}

// predict propagates the state to ts without modifying the Predictor
func (p *Predictor) predict(ts time.Duration) (*mat.VecDense, *mat.Dense) {

	dt := (ts - p.last).Seconds()
	motion := motionMat(dt)

	mean := mat.NewVecDense(stateDim, nil)
	mean.MulVec(motion, p.mean)

	cov := mat.NewDense(stateDim, stateDim, nil)
	cov.Mul(motion, p.cov)
	cov.Mul(cov, motion.T())

	// process noise grows with the elapsed time
	posVar := p.stdPosition * p.stdPosition * dt
	velVar := p.stdVelocity * p.stdVelocity * dt

	for i, v := range []float64{posVar, posVar, velVar, velVar} {
		cov.Set(i, i, cov.At(i, i)+v)
	}

	return mean, cov
}

// Update corrects the state with a position measured at ts.  The first
// measurement initiates the state.
func (p *Predictor) Update(ts time.Duration, pos r2.Vec) error {

	if !p.initiated {
		p.initiate(ts, pos)
		return nil
	}

	if ts <= p.last {
		return fmt.Errorf("%w: %v after %v", ErrOutOfOrder, ts, p.last)
	}

	mean, cov := p.predict(ts)

	// project the state covariance to measurement space
	tmp := mat.NewDense(measDim, stateDim, nil)
	tmp.Mul(p.updateMat, cov)
	projected := mat.NewDense(measDim, measDim, nil)
	projected.Mul(tmp, p.updateMat.T())

	innovationCov := mat.NewSymDense(measDim, nil)

	for i := 0; i < measDim; i++ {
		for j := 0; j < measDim; j++ {
			innovationCov.SetSym(i, j, projected.At(i, j))
		}
		innovationCov.SetSym(i, i, innovationCov.At(i, i)+p.stdPosition*p.stdPosition)
	}

	chol := mat.Cholesky{}

	if ok := chol.Factorize(innovationCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// gain transposed, solves S * K^T = H * P
	B := mat.NewDense(stateDim, measDim, nil)
	B.Mul(cov, p.updateMat.T())

	var gainT mat.Dense

	if err := chol.SolveTo(&gainT, B.T()); err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(measDim, []float64{
		pos.X - mean.AtVec(0),
		pos.Y - mean.AtVec(1),
	})

	correction := mat.NewVecDense(stateDim, nil)
	correction.MulVec(gainT.T(), innovation)
	mean.AddVec(mean, correction)

	// P = P - K S K^T
	tmp2 := mat.NewDense(stateDim, measDim, nil)
	tmp2.Mul(gainT.T(), innovationCov)
	reduce := mat.NewDense(stateDim, stateDim, nil)
	reduce.Mul(tmp2, &gainT)
	cov.Sub(cov, reduce)

	p.mean, p.cov, p.last = mean, cov, ts

	return nil
}

// Predict returns the estimated position at ts.  ok is false before the first
// measurement.
func (p *Predictor) Predict(ts time.Duration) (pos r2.Vec, ok bool) {

	if !p.initiated {
		return r2.Vec{}, false
	}

	if ts <= p.last {
		return r2.Vec{X: p.mean.AtVec(0), Y: p.mean.AtVec(1)}, true
	}

	mean, _ := p.predict(ts)
	return r2.Vec{X: mean.AtVec(0), Y: mean.AtVec(1)}, true
}

// Velocity returns the estimated velocity in pixels per second
func (p *Predictor) Velocity() r2.Vec {

	if !p.initiated {
		return r2.Vec{}
	}

	return r2.Vec{X: p.mean.AtVec(2), Y: p.mean.AtVec(3)}
}

// LastUpdate returns the timestamp of the last measurement
func (p *Predictor) LastUpdate() time.Duration {
	return p.last
}
