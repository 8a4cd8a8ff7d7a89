package discovery

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type upstreamCall struct {
	op  string
	err error
}

type upstreamRecorder struct {
	mu    sync.Mutex
	calls []upstreamCall
}

func (u *upstreamRecorder) ObserveUpstream(op string, err error, _ time.Duration) {
	u.mu.Lock()
	u.calls = append(u.calls, upstreamCall{op, err})
	u.mu.Unlock()
}

func TestPeripheralClient_ControlCalls(t *testing.T) {
	fake := newFakePeripheral(t, map[string]any{"type": "spectrometer"})
	c := NewPeripheralClient(time.Second)
	obs := &upstreamRecorder{}
	c.SetObserver(obs)
	ctx := context.Background()
	base := fake.srv.URL

	if err := c.SetControlWavelength(ctx, base, 632.8); err != nil {
		t.Fatalf("SetControlWavelength() error = %v", err)
	}
	if err := c.StartChamber(ctx, base); err != nil {
		t.Fatalf("StartChamber() error = %v", err)
	}
	if err := c.StopChamber(ctx, base); err != nil {
		t.Fatalf("StopChamber() error = %v", err)
	}
	if err := c.SetMaterial(ctx, base, "L", 40); err != nil {
		t.Fatalf("SetMaterial() error = %v", err)
	}

	wl := fake.callsTo(pathControlWavelength)
	if len(wl) != 1 || wl[0]["wavelength"] != 632.8 {
		t.Errorf("control_wavelength body = %v", wl)
	}
	mat := fake.callsTo(pathChamberMaterial)
	if len(mat) != 1 || mat[0]["material"] != "L" || mat[0]["fraction"] != float64(40) {
		t.Errorf("material body = %v", mat)
	}
	if len(fake.callsTo(pathChamberStart)) != 1 || len(fake.callsTo(pathChamberStop)) != 1 {
		t.Error("start/stop not received")
	}
	if len(obs.calls) != 4 {
		t.Errorf("observed %d calls, want 4", len(obs.calls))
	}
}

func TestPeripheralClient_UpstreamErrors(t *testing.T) {
	ctx := context.Background()
	c := NewPeripheralClient(200 * time.Millisecond)

	t.Run("unreachable", func(t *testing.T) {
		err := c.StartChamber(ctx, "http://127.0.0.1:9999")
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
		}
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := newStubServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		err := c.SetControlWavelength(ctx, srv.URL, 500)
		if !errors.Is(err, ErrUpstreamStatus) || !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("error = %v, want ErrUpstreamStatus wrapping ErrUpstreamUnavailable", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := newStubServer(t, func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		err := c.StopChamber(ctx, srv.URL)
		if !errors.Is(err, ErrUpstreamTimeout) {
			t.Errorf("error = %v, want ErrUpstreamTimeout", err)
		}
	})
}

func TestNewPeripheralClient_DefaultTimeout(t *testing.T) {
	c := NewPeripheralClient(0)
	if c.timeout != DefaultTimeout || c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v/%v, want %v", c.timeout, c.httpClient.Timeout, DefaultTimeout)
	}
}
