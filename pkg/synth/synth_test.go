package synth

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"variogo/pkg/tone"
)

func TestVolumeForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{VolumeOff, 0},
		{VolumeLow, 0.33},
		{VolumeMedium, 0.66},
		{VolumeHigh, 1.0},
		{7, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := VolumeForLevel(tt.level); got != tt.want {
			t.Errorf("VolumeForLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestVolumeCellClamp(t *testing.T) {
	c := NewVolumeCell(2)
	if c.Get() != 1 {
		t.Errorf("got %v, want clamp to 1", c.Get())
	}
	c.Set(math.NaN())
	if c.Get() != 0 {
		t.Errorf("NaN stored as %v", c.Get())
	}
	c.SetLevel(VolumeMedium)
	if c.Get() != 0.66 {
		t.Errorf("level 2 = %v", c.Get())
	}
}

func TestFillSilence(t *testing.T) {
	tests := []struct {
		name   string
		params tone.Params
	}{
		{"Zero", tone.Params{}},
		{"NegativeFreq", tone.Params{FrequencyHz: -5, CycleMillis: 100, DutyPercent: 50}},
		{"NaNFreq", tone.Params{FrequencyHz: math.NaN(), CycleMillis: 100, DutyPercent: 50}},
		{"ZeroDuty", tone.Params{FrequencyHz: 440, CycleMillis: 100, DutyPercent: 0}},
		{"ZeroCycle", tone.Params{FrequencyHz: 440, CycleMillis: 0, DutyPercent: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(8000, 256, nil)
			s.SetParams(tt.params)
			buf := make([]int16, 256)
			for i := range buf {
				buf[i] = 1
			}
			s.Fill(buf)
			for i, v := range buf {
				if v != 0 {
					t.Fatalf("sample %d = %d, want silence", i, v)
				}
			}
		})
	}
}

func TestFillDutyCycle(t *testing.T) {
	// 100ms cycle at 8kHz = 800 samples, 25% duty = 200 on.
	s := New(8000, 1600, NewVolumeCell(1))
	s.SetParams(tone.Params{FrequencyHz: 1000, CycleMillis: 100, DutyPercent: 25})
	buf := make([]int16, 1600)
	s.Fill(buf)

	var peak int16
	for i, v := range buf {
		pos := i % 800
		if pos >= 200 && v != 0 {
			t.Fatalf("sample %d in off phase = %d", i, v)
		}
		if v > peak {
			peak = v
		}
	}
	// 1kHz at 8kHz: phase hits pi/2 exactly every 8 samples.
	if peak != math.MaxInt16 {
		t.Errorf("peak = %d, want %d", peak, math.MaxInt16)
	}
	if buf[0] != 0 {
		t.Errorf("first sample = %d, want 0 (sin 0)", buf[0])
	}
	if buf[2] != math.MaxInt16 {
		t.Errorf("quarter-period sample = %d, want %d", buf[2], math.MaxInt16)
	}
}

func TestFillVolume(t *testing.T) {
	vol := NewVolumeCell(1)
	s := New(8000, 16, vol)
	s.SetParams(tone.Params{FrequencyHz: 2000, CycleMillis: 100, DutyPercent: 100})
	buf := make([]int16, 16)

	vol.SetLevel(VolumeLow)
	s.Fill(buf)
	// 2kHz at 8kHz: sin(pi/2) at index 1.
	want := int16(math.Round(math.Round(32767 * 0.33)))
	if buf[1] != want {
		t.Errorf("low volume peak = %d, want %d", buf[1], want)
	}

	vol.SetLevel(VolumeOff)
	s.Fill(buf)
	for _, v := range buf {
		if v != 0 {
			t.Fatal("volume off must render silence")
		}
	}
}

func TestFillPhaseContinuity(t *testing.T) {
	s := New(8000, 0, nil)
	s.SetParams(tone.Params{FrequencyHz: 1000, CycleMillis: 1000, DutyPercent: 100})

	whole := make([]int16, 64)
	s.Fill(whole)

	s.Reset()
	a := make([]int16, 24)
	b := make([]int16, 40)
	s.Fill(a)
	s.Fill(b)
	split := append(a, b...)
	for i := range whole {
		if whole[i] != split[i] {
			t.Fatalf("sample %d differs across buffer boundary: %d vs %d", i, whole[i], split[i])
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(8000, 128, nil)
	out := &DiscardOutput{SampleRate: 8000}
	if err := out.Start(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	if out.Samples() == 0 {
		t.Error("expected samples to be written")
	}
}

func TestRunTerminatesOnWriteError(t *testing.T) {
	s := New(8000, 128, nil)
	out := &DiscardOutput{FailAfter: 3}
	_ = out.Start()
	err := s.Run(context.Background(), out)
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("err = %v, want ErrWriteTimeout", err)
	}
	if out.Samples() != 256 {
		t.Errorf("samples = %d, want 256", out.Samples())
	}
}
