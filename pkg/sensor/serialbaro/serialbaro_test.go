package serialbaro

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"variogo/pkg/sensor"
)

func withChecksum(body string) string {
	return fmt.Sprintf("$%s*%02X", body, checksum(body))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    float64
		wantErr error
	}{
		{"Bare", "1013.25", 1013.25, nil},
		{"BareSpaces", "  899.9\r", 899.9, nil},
		{"Prefixed", "P=955.10", 955.10, nil},
		{"LK8EX1", "$LK8EX1,98765,99999,9999,25,999,", 987.65, nil},
		{"LK8EX1Checksum", withChecksum("LK8EX1,101325,0,0,20,999,"), 1013.25, nil},
		{"LK8EX1BadChecksum", "$LK8EX1,101325,0,0,20,999,*00", 0, ErrChecksum},
		{"LK8EX1NoPressure", "$LK8EX1,999999,120,50,20,999,", 0, ErrNoPressure},
		{"OtherSentence", "$GPGGA,123519,4807.038,N", 0, ErrUnrecognized},
		{"Garbage", "hello", 0, ErrUnrecognized},
		{"Empty", "", 0, ErrUnrecognized},
		{"Zero", "0", 0, ErrNoPressure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPortOptions(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if opts.BaudRate != 9600 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("defaults = %+v", opts)
	}

	mode, err := PortOptions{BaudRate: 115200, StopBits: 2, Parity: "even"}.Mode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 115200 || mode.StopBits != serial.TwoStopBits || mode.Parity != serial.EvenParity {
		t.Errorf("mode = %+v", mode)
	}

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

type sink struct {
	mu       sync.Mutex
	samples  []sensor.PressureSample
	accuracy []sensor.Accuracy
}

func (s *sink) OnSample(p sensor.PressureSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, p)
}

func (s *sink) OnAccuracy(a sensor.Accuracy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accuracy = append(s.accuracy, a)
}

func (s *sink) snapshot() ([]sensor.PressureSample, []sensor.Accuracy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sensor.PressureSample(nil), s.samples...), append([]sensor.Accuracy(nil), s.accuracy...)
}

func TestDriverReadsLines(t *testing.T) {
	r, w := io.Pipe()
	var opened string
	d := New("/dev/ttyUSB0", PortOptions{}, func(path string, mode *serial.Mode) (io.ReadCloser, error) {
		opened = path
		return r, nil
	})
	s := &sink{}
	if err := d.Register(0, s); err != nil {
		t.Fatal(err)
	}
	if opened != "/dev/ttyUSB0" {
		t.Errorf("opened %q", opened)
	}
	if d.Name() != "serial:/dev/ttyUSB0" {
		t.Errorf("name = %q", d.Name())
	}

	go func() {
		fmt.Fprintln(w, "900.1")
		fmt.Fprintln(w, "noise")
		fmt.Fprintln(w, "P=899.9")
		fmt.Fprintln(w, "$LK8EX1,90000,0,0,20,999,")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := s.snapshot()
		if len(got) == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.Unregister(); err != nil {
		t.Fatal(err)
	}

	got, acc := s.snapshot()
	want := []float64{900.1, 899.9, 900}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Value != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i].Value, want[i])
		}
	}
	if len(acc) != 0 {
		t.Errorf("unexpected accuracy reports %v after clean shutdown", acc)
	}
}

func TestDriverFlagsUnreliable(t *testing.T) {
	r, w := io.Pipe()
	d := New("COM3", PortOptions{}, func(string, *serial.Mode) (io.ReadCloser, error) { return r, nil })
	s := &sink{}
	if err := d.Register(0, s); err != nil {
		t.Fatal(err)
	}
	for range maxBadLines {
		fmt.Fprintln(w, "garbage")
	}
	fmt.Fprintln(w, "1000")
	// Device disappears.
	w.Close()

	d.wg.Wait()
	_, acc := s.snapshot()
	want := []sensor.Accuracy{sensor.AccuracyUnreliable, sensor.AccuracyHigh, sensor.AccuracyUnreliable}
	if fmt.Sprint(acc) != fmt.Sprint(want) {
		t.Errorf("accuracy = %v, want %v", acc, want)
	}
	_ = d.Unregister()
}

func TestDriverOpenFailure(t *testing.T) {
	d := New("missing", PortOptions{}, func(string, *serial.Mode) (io.ReadCloser, error) {
		return nil, errors.New("no such port")
	})
	if err := d.Register(time.Second, &sink{}); err == nil {
		t.Fatal("expected open error")
	}
	if err := d.Unregister(); err != nil {
		t.Errorf("Unregister on unopened driver = %v", err)
	}
}
