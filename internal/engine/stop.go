package engine

import (
	"sync/atomic"
	"time"
)

// stopSignal is the Run's one-shot cooperative-cancellation signal (spec
// §5): every task checks it at every wait point and exits without further
// venue calls once it fires.
type stopSignal struct {
	flag int32
}

func newStopSignal() *stopSignal {
	return &stopSignal{}
}

func (s *stopSignal) set() {
	atomic.StoreInt32(&s.flag, 1)
}

func (s *stopSignal) isSet() bool {
	return atomic.LoadInt32(&s.flag) == 1
}

// sleepInSlices sleeps for period in 100ms slices so a stop signal
// cancels promptly (spec §4.4, §4.6, §4.7, §5).
func sleepInSlices(period time.Duration, stop *stopSignal) {
	const slice = 100 * time.Millisecond
	elapsed := time.Duration(0)
	for elapsed < period {
		if stop.isSet() {
			return
		}
		step := slice
		if remaining := period - elapsed; remaining < step {
			step = remaining
		}
		time.Sleep(step)
		elapsed += step
	}
}
