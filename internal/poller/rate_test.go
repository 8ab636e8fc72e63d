package poller

import (
	"math"
	"testing"
	"time"
)

func TestComputeRate_FirstSample(t *testing.T) {
	r := ComputeRate(nil, 1000, time.Now())
	if !r.First {
		t.Fatal("expected First=true with no prior sample")
	}
	if r.Rate != 0 || r.Delta != 0 {
		t.Errorf("first sample should carry no rate, got delta=%v rate=%v", r.Delta, r.Rate)
	}
}

func TestComputeRate_SimpleDelta(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	prev := &Sample{Value: 100, SampledAt: t0}

	r := ComputeRate(prev, 150, t0.Add(10*time.Second))

	if r.First {
		t.Fatal("unexpected First")
	}
	if r.Delta != 50 {
		t.Errorf("delta = %v, want 50", r.Delta)
	}
	if r.Rate != 5 {
		t.Errorf("rate = %v, want 5", r.Rate)
	}
	if r.Elapsed != 10 {
		t.Errorf("elapsed = %v, want 10", r.Elapsed)
	}
}

func TestComputeRate_ZeroElapsed(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	prev := &Sample{Value: 100, Rate: 7.5, SampledAt: t0}

	// Same timestamp must not divide by zero; the previous rate carries over.
	r := ComputeRate(prev, 200, t0)
	if r.Rate != 7.5 {
		t.Errorf("rate = %v, want previous rate 7.5", r.Rate)
	}
}

func TestComputeRate_Counter32Wrap(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	prev := &Sample{Value: math.MaxUint32 - 99, SampledAt: t0}

	r := ComputeRate(prev, 100, t0.Add(10*time.Second))

	// 100 past the wrap plus the 100 remaining before it.
	if r.Delta != 200 {
		t.Errorf("delta = %v, want 200", r.Delta)
	}
	if r.Rate != 20 {
		t.Errorf("rate = %v, want 20", r.Rate)
	}
}

func TestComputeRate_Counter64Reset(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	// Previous value above the Counter32 range: a decrease means the
	// device rebooted, not a wrap.
	prev := &Sample{Value: float64(uint64(1) << 33), SampledAt: t0}

	r := ComputeRate(prev, 500, t0.Add(10*time.Second))

	if r.Delta != 0 || r.Rate != 0 {
		t.Errorf("reset should zero the sample, got delta=%v rate=%v", r.Delta, r.Rate)
	}
	if r.Elapsed != 10 {
		t.Errorf("elapsed = %v, want 10", r.Elapsed)
	}
}

func TestUtilization(t *testing.T) {
	// 1,000,000 octets over 10s on a 1 Gbps link.
	got, ok := Utilization(1_000_000, 10, 1_000_000_000)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(got-0.08) > 1e-9 {
		t.Errorf("utilization = %v, want 0.08", got)
	}
}

func TestUtilization_UnknownSpeed(t *testing.T) {
	if _, ok := Utilization(1000, 10, 0); ok {
		t.Error("expected ok=false for zero speed")
	}
	if _, ok := Utilization(1000, 0, 1_000_000); ok {
		t.Error("expected ok=false for zero elapsed")
	}
}
