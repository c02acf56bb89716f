package onboard

import (
	"context"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
)

const DefaultLoopPeriod = 10 * time.Millisecond

// InputSource is polled once per tick for the drive axis and the closed loop button.
type InputSource interface {
	Poll() (axis float64, button bool, err error)
}

// VirtualInput is an InputSource that returns whatever it was last set to.
type VirtualInput struct {
	lock   sync.Mutex
	axis   float64
	button bool
}

func (v *VirtualInput) Set(axis float64, button bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.axis = mgl64.Clamp(axis, -1, 1)
	v.button = button
}

func (v *VirtualInput) Poll() (float64, bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.axis, v.button, nil
}

// Runner calls DriveController.Tick from a single goroutine, pausing Period between ticks.
type Runner struct {
	Drive  *DriveController
	Input  InputSource
	Period time.Duration
	Sinks  []TelemetrySink
	Log    logrus.FieldLogger

	inputFailing    bool
	dispatchFailing bool
}

func NewRunner(drive *DriveController, input InputSource, period time.Duration, sinks ...TelemetrySink) *Runner {
	return &Runner{
		Drive:  drive,
		Input:  input,
		Period: period,
		Sinks:  sinks,
		Log:    log.WithField("runner", "drive"),
	}
}

// Step runs a single tick and publishes its sample.
// Input that cannot be read is replaced by a centred stick with the button up.
func (r *Runner) Step() (TelemetrySample, error) {
	axis, button, err := r.Input.Poll()
	if err != nil {
		if !r.inputFailing {
			r.Log.WithError(err).Warn("input unavailable, holding neutral")
		}
		r.inputFailing = true
		axis, button = 0, false
	} else if r.inputFailing {
		r.Log.Info("input restored")
		r.inputFailing = false
	}

	sample, err := r.Drive.Tick(axis, button)
	for _, sink := range r.Sinks {
		sink.Publish(sample)
	}
	return sample, err
}

// dispatched logs the first failing tick at warn and the rest at debug until a tick succeeds.
func (r *Runner) dispatched(_ TelemetrySample, err error) {
	switch {
	case err != nil && !r.dispatchFailing:
		r.Log.WithError(err).Warn("tick dispatch failed")
		r.dispatchFailing = true
	case err != nil:
		r.Log.WithError(err).Debug("tick dispatch failed")
	case r.dispatchFailing:
		r.Log.Info("tick dispatch restored")
		r.dispatchFailing = false
	}
}

// Run ticks until ctx is done. Cancellation is a normal stop and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	period := r.Period
	if period <= 0 {
		period = DefaultLoopPeriod
	}

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		r.dispatched(r.Step())

		// best effort pause, an early wake just means a short tick
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(period)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
