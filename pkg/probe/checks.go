package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.bug.st/serial"

	"variogo/pkg/store"
	"variogo/pkg/tone"
)

const probeKey = "probe_check"

// StateStoreCheck verifies the preference store accepts a write, read and delete.
func StateStoreCheck(st store.StateStore) CheckFunc {
	return func(ctx context.Context) error {
		if st == nil {
			return errors.New("state store not configured")
		}
		if err := st.SetState(ctx, probeKey, "ok"); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if v, ok := st.GetState(ctx, probeKey); !ok || v != "ok" {
			return errors.New("read back mismatch")
		}
		return st.DeleteState(ctx, probeKey)
	}
}

// ProfileCheck verifies that the tone profile resolves. It reports the
// embedded default as a failure so the operator notices a missing file.
func ProfileCheck(l tone.Loader) CheckFunc {
	return func(ctx context.Context) error {
		p, src, err := l.Load()
		if err != nil {
			return err
		}
		if src == tone.SourceDefault {
			return fmt.Errorf("no profile at %s, embedded default written to %s", l.Primary, l.Fallback)
		}
		if len(p.Points) < 2 {
			return fmt.Errorf("profile has only %d tone point(s)", len(p.Points))
		}
		return nil
	}
}

// PortLister enumerates serial ports.
type PortLister func() ([]string, error)

// SerialPortCheck verifies that a serial port exists, either in the system
// port list or as a device path.
func SerialPortCheck(port string, list PortLister) CheckFunc {
	if list == nil {
		list = serial.GetPortsList
	}
	return func(ctx context.Context) error {
		if port == "" {
			return errors.New("no serial port configured")
		}
		ports, err := list()
		if err == nil && slices.Contains(ports, port) {
			return nil
		}
		if _, statErr := os.Stat(port); statErr == nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("port %s not found (enumeration failed: %w)", port, err)
		}
		return fmt.Errorf("port %s not found (available: %v)", port, ports)
	}
}

// WritableDirCheck verifies that the directory holding path accepts new files.
func WritableDirCheck(path string) CheckFunc {
	return func(ctx context.Context) error {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}
