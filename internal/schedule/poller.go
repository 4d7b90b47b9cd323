package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller triggers one refresh per day at a fixed local time, the way the
// schedule is meant to be consumed: the data changes at most a few times
// a year, so anything more frequent would just hammer the remote service.
type Poller struct {
	coord    *Coordinator
	hour     int
	minute   int
	tz       *time.Location
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a daily poller firing at hour:minute in tz.
func NewPoller(coord *Coordinator, hour, minute int, tz *time.Location) *Poller {
	if tz == nil {
		tz = time.Local
	}
	return &Poller{
		coord:    coord,
		hour:     hour,
		minute:   minute,
		tz:       tz,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			wait := untilNext(time.Now().In(p.tz), p.hour, p.minute)
			log.Printf("Poller: next refresh in %s", wait.Round(time.Second))
			select {
			case <-p.stopChan:
				return
			case <-time.After(wait):
			}

			ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
			if err := p.coord.Refresh(ctx); err != nil {
				log.Printf("Poller: refresh error: %v", err)
			}
			cancel()
		}
	}()
}

// Stop stops the poller gracefully. An in-flight refresh is not
// interrupted; its result is still published.
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// untilNext computes how long to wait for the next hour:minute in now's
// location, always at least one minute so a firing at the target time
// cannot re-trigger within the same minute.
func untilNext(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	if d := next.Sub(now); d >= time.Minute {
		return d
	}
	return time.Minute
}
