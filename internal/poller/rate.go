package poller

import "time"

// counter32Modulus is the wrap point of a Counter32. A current value below
// the previous one is read as a wrap when the previous value still fits in
// 32 bits; otherwise the counter is assumed to have reset (device reboot).
const counter32Modulus = float64(1 << 32)

// RateResult is the outcome of the counter-delta computation for one poll.
type RateResult struct {
	Delta   float64
	Rate    float64
	Elapsed float64 // seconds between the previous and current sample
	First   bool    // no prior sample existed; only the raw value is meaningful
}

// ComputeRate derives the delta and per-second rate from the previous sample
// and the current reading. It never mutates prev.
//
// Zero elapsed time falls back to the previous sample's rate rather than
// dividing by zero. A negative delta on a 32-bit counter is unwrapped over
// the Counter32 modulus; on a 64-bit counter it is treated as a reset.
func ComputeRate(prev *Sample, value float64, at time.Time) RateResult {
	if prev == nil {
		return RateResult{First: true}
	}

	elapsed := at.Sub(prev.SampledAt).Seconds()
	if elapsed <= 0 {
		return RateResult{Rate: prev.Rate}
	}

	delta := value - prev.Value
	if delta < 0 {
		if prev.Value < counter32Modulus {
			delta = counter32Modulus - prev.Value + value
		} else {
			// Counter reset.
			return RateResult{Elapsed: elapsed}
		}
	}

	return RateResult{
		Delta:   delta,
		Rate:    delta / elapsed,
		Elapsed: elapsed,
	}
}

// Utilization computes interface bandwidth utilization in percent from an
// octet delta, the elapsed seconds, and the interface's nominal speed in
// bits per second. Returns 0, false when speed or elapsed is unknown.
func Utilization(deltaOctets, elapsedSeconds float64, speedBps uint64) (float64, bool) {
	if speedBps == 0 || elapsedSeconds <= 0 {
		return 0, false
	}
	return (deltaOctets * 8 * 100) / (elapsedSeconds * float64(speedBps)), true
}
