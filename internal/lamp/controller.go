// Package lamp runs a logic.Device against real (or fake) hardware: the
// foreground poll loop, the tick and watchdog handlers and the edge callback.
package lamp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/tilt-lamp/internal/gpio"
	"github.com/sweeney/tilt-lamp/internal/led"
	"github.com/sweeney/tilt-lamp/internal/logic"
	"github.com/sweeney/tilt-lamp/internal/metrics"
	"github.com/sweeney/tilt-lamp/internal/mqtt"
	"github.com/sweeney/tilt-lamp/internal/status"
)

// Options are the collaborators of a Controller. Only Reader and Output
// are required.
type Options struct {
	Reader gpio.Reader
	Output led.Output

	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	Metrics   *metrics.Recorder
	Log       logrus.FieldLogger

	// Tick, Poll and Watchdog replace the tickers derived from the params.
	Tick     <-chan time.Time
	Poll     <-chan time.Time
	Watchdog <-chan time.Time
	// WatchdogTimeout is how long the watchdog handler may go without
	// running before the device is reset. Defaults to twice the period.
	WatchdogTimeout time.Duration

	// RampSleep replaces time.Sleep between ramp steps.
	RampSleep func(time.Duration)
	Now       func() time.Time
}

// Controller owns the device and drives the LED from its decisions.
type Controller struct {
	dev    *logic.Device
	reader gpio.Reader
	ramper *led.Ramper

	pub     mqtt.Publisher
	tracker *status.Tracker
	metrics *metrics.Recorder
	log     logrus.FieldLogger
	now     func() time.Time

	tick, poll, watchdog <-chan time.Time
	tickers              []*time.Ticker
	wdTimeout            time.Duration

	// seenToggles is only touched by the foreground loop.
	seenToggles int
}

// New reads the tilt pin once to seed the debounce filter and returns a
// Controller in the power-on state.
func New(p logic.Params, opts Options) (*Controller, error) {
	if opts.Reader == nil || opts.Output == nil {
		return nil, fmt.Errorf("lamp: reader and output are required")
	}
	level, err := opts.Reader.ReadTilt()
	if err != nil {
		return nil, fmt.Errorf("read initial tilt level: %w", err)
	}
	dev, err := logic.NewDevice(p, level)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		dev:       dev,
		reader:    opts.Reader,
		ramper:    led.NewRamper(opts.Output, p.RampStepDelay, opts.RampSleep),
		pub:       opts.Publisher,
		tracker:   opts.Tracker,
		metrics:   opts.Metrics,
		log:       opts.Log,
		now:       opts.Now,
		tick:      opts.Tick,
		poll:      opts.Poll,
		watchdog:  opts.Watchdog,
		wdTimeout: opts.WatchdogTimeout,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.tick == nil {
		c.tick = c.newTicker(p.TickInterval())
	}
	if c.poll == nil {
		c.poll = c.newTicker(p.PollInterval)
	}
	if c.watchdog == nil {
		c.watchdog = c.newTicker(p.WatchdogPeriod)
	}
	if c.wdTimeout <= 0 {
		c.wdTimeout = 2 * p.WatchdogPeriod
	}
	return c, nil
}

func (c *Controller) newTicker(d time.Duration) <-chan time.Time {
	t := time.NewTicker(d)
	c.tickers = append(c.tickers, t)
	return t.C
}

// Device exposes the state machine, mainly for status reporting.
func (c *Controller) Device() *logic.Device {
	return c.dev
}

// Level returns the LED duty level.
func (c *Controller) Level() uint8 {
	return c.ramper.Level()
}

// Run drives the lamp until ctx is cancelled. The LED is switched off on return.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		for _, t := range c.tickers {
			t.Stop()
		}
	}()

	sup := NewSupervisor(c.wdTimeout, c.expire)
	defer sup.Stop()

	c.reader.OnEdge(c.handleEdge)
	defer c.reader.OnEdge(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runTicks(ctx)
	}()
	go func() {
		defer wg.Done()
		c.runWatchdog(ctx, sup)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	p := c.dev.Params()
	c.log.WithFields(logrus.Fields{
		"variant":  p.Name,
		"on_time":  p.OnTimeTilt,
		"edge":     p.EdgeWake,
		"light":    p.SamplesLight(),
		"toggle":   p.Toggles(),
		"watchdog": c.wdTimeout,
	}).Info("lamp running")
	c.report()

	for {
		select {
		case <-ctx.Done():
			if err := c.ramper.Off(); err != nil {
				c.log.WithError(err).Warn("switch LED off")
			}
			c.report()
			return nil
		case <-c.poll:
			c.step(ctx)
		}
	}
}

// step is one pass of the foreground loop.
func (c *Controller) step(ctx context.Context) {
	if c.dev.TakeReset() {
		c.handleReset()
	}

	level, err := c.reader.ReadTilt()
	if err != nil {
		c.log.WithError(err).Warn("tilt read error")
		return
	}

	switch action := c.dev.Poll(level); action {
	case logic.ActRampUp:
		c.countToggles()
		c.ramp(logic.Up)
	case logic.ActRampDown:
		c.countToggles()
		if c.ramp(logic.Down) == logic.ActSleep {
			c.sleep(ctx)
		}
	case logic.ActSleep:
		c.sleep(ctx)
	}
	c.report()
}

func (c *Controller) countToggles() {
	n := c.dev.Snapshot().Counts.Toggles
	for ; c.seenToggles < n; c.seenToggles++ {
		if c.metrics != nil {
			c.metrics.IncToggle()
		}
	}
}

// ramp sweeps the LED in dir. It returns what the device wants next.
func (c *Controller) ramp(dir logic.Direction) logic.Action {
	if !c.dev.BeginRamp(dir) {
		return logic.ActNone
	}
	c.report()

	start := c.now()
	var err error
	if dir == logic.Up {
		err = c.ramper.Up()
	} else {
		err = c.ramper.Down()
	}
	if err != nil {
		c.log.WithError(err).WithField("direction", dir).Warn("ramp aborted")
	}
	next, completed := c.dev.EndRamp()
	elapsed := c.now().Sub(start)
	if !completed {
		// A reset took the device back to power-on mid-ramp; the next
		// step switches the LED off.
		c.log.WithField("direction", dir).Warn("ramp abandoned by reset")
		return next
	}

	evType := logic.EventRampUp
	if dir == logic.Down {
		evType = logic.EventRampDown
	}
	if c.metrics != nil {
		c.metrics.ObserveRamp(dir, elapsed)
	}
	c.emit(evType)
	return next
}

// sleep parks the foreground until an interrupt handler wakes the device.
func (c *Controller) sleep(ctx context.Context) {
	if !c.dev.Sleep() {
		return
	}
	if c.metrics != nil {
		c.metrics.IncSleep()
	}
	c.emit(logic.EventSleep)
	c.report()

	select {
	case src := <-c.dev.Wakeups():
		if src == logic.WakeReset {
			// The next step handles it.
			return
		}
		if c.metrics != nil {
			c.metrics.IncWakeup(src)
		}
		c.emit(logic.EventWake)
	case <-ctx.Done():
	}
}

func (c *Controller) handleReset() {
	c.log.Warn("watchdog was not re-armed, device reset")
	if err := c.ramper.Off(); err != nil {
		c.log.WithError(err).Warn("switch LED off after reset")
	}
	if c.metrics != nil {
		c.metrics.IncWatchdogReset()
	}
	c.emit(logic.EventReset)
}

// emit publishes an event with the device's current state.
func (c *Controller) emit(t logic.EventType) {
	snap := c.dev.Snapshot()
	event := logic.Event{
		Timestamp: c.now(),
		Type:      t,
		State:     snap.State,
		Cause:     snap.Cause,
		Level:     c.ramper.Level(),
	}
	c.log.WithFields(logrus.Fields{
		"state": event.State,
		"cause": event.Cause,
		"level": event.Level,
	}).Infof("event: %s", t)

	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(event); err != nil {
		c.log.WithError(err).Warn("publish error")
		if c.metrics != nil {
			c.metrics.IncPublishError()
		}
	}
}

// report copies the device state to the tracker and the gauges. It is safe
// from any goroutine.
func (c *Controller) report() {
	if c.tracker == nil && c.metrics == nil {
		return
	}
	snap := c.dev.Snapshot()
	level := c.ramper.Level()
	if c.tracker != nil {
		c.tracker.Update(snap, level)
	}
	if c.metrics != nil {
		c.metrics.SetDevice(snap, level)
	}
}

// runTicks is the periodic timer interrupt.
func (c *Controller) runTicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.tick:
			if c.dev.OnTick() {
				c.report()
			}
		}
	}
}

// runWatchdog is the watchdog interrupt. Re-arming comes first so that no
// path through the handler can leave the watchdog unacknowledged.
func (c *Controller) runWatchdog(ctx context.Context, sup *Supervisor) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.watchdog:
			c.handleWatchdog(sup)
		}
	}
}

func (c *Controller) handleWatchdog(sup *Supervisor) {
	defer sup.Rearm()

	if !c.dev.WantsLight() {
		return
	}
	dark, err := c.reader.ReadDark()
	if err != nil {
		c.log.WithError(err).Warn("light read error")
		return
	}
	if c.dev.OnWatchdog(dark) {
		c.log.Debug("darkness confirmed, queueing ramp up")
	}
}

// handleEdge is the pin-change interrupt.
func (c *Controller) handleEdge() {
	if c.dev.OnEdge() {
		c.log.Debug("tilt edge")
	}
}

// expire runs when the watchdog times out.
func (c *Controller) expire() {
	c.dev.Reset()
}
