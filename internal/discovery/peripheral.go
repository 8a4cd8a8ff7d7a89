package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/device"
)

// DefaultTimeout bounds every outbound peripheral call.
const DefaultTimeout = 5 * time.Second

// maxInfoBodySize caps the /device/info response read into memory.
const maxInfoBodySize = 1 << 20

// Peripheral endpoint paths.
const (
	pathDeviceInfo        = "/device/info"
	pathRegister          = "/register"
	pathControlWavelength = "/control_wavelength"
	pathChamberStart      = "/vacuum_chamber/start"
	pathChamberStop       = "/vacuum_chamber/stop"
	pathChamberMaterial   = "/vacuum_chamber/material"
)

// Info is the body a peripheral returns from GET /device/info.
type Info struct {
	Type         device.DeviceType   `json:"type"`
	Name         string              `json:"name,omitempty"`
	Capabilities device.Capabilities `json:"capabilities"`
}

// Registration is the body POSTed to a peripheral's /register endpoint so it
// knows where to push samples. Resource ids are null when not provisioned.
type Registration struct {
	MonitoringAPIURL string  `json:"monitoring_api_url"`
	SpectrometerID   *string `json:"spectrometer_id"`
	VacuumChamberID  *string `json:"vacuum_chamber_id"`
}

// Observer receives one callback per outbound peripheral call.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveUpstream(op string, err error, elapsed time.Duration)
}

// PeripheralClient speaks the peripheral HTTP protocol.
//
// Every call carries the client timeout in addition to any deadline on the
// caller's context. Non-2xx answers, transport failures and timeouts are all
// reported as ErrUpstreamUnavailable.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type PeripheralClient struct {
	httpClient *http.Client
	timeout    time.Duration
	observer   Observer
}

// NewPeripheralClient creates a client with the given per-call timeout.
// A non-positive timeout selects DefaultTimeout.
func NewPeripheralClient(timeout time.Duration) *PeripheralClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PeripheralClient{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// SetObserver installs an observer for outbound calls.
func (c *PeripheralClient) SetObserver(o Observer) {
	c.observer = o
}

// Info queries GET /device/info on the peripheral at address:port.
func (c *PeripheralClient) Info(ctx context.Context, address string, port int) (*Info, error) {
	url := device.PeripheralURL(address, port) + pathDeviceInfo

	var info Info
	err := c.do(ctx, "device_info", http.MethodGet, url, nil, func(body io.Reader) error {
		data, err := io.ReadAll(io.LimitReader(body, maxInfoBodySize))
		if err != nil {
			return fmt.Errorf("%w: reading body: %w", ErrUpstreamUnavailable, err)
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInfo, err)
		}
		if info.Type == "" {
			return fmt.Errorf("%w: type is required", ErrInvalidInfo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Register POSTs the monitoring callback URL and provisioned resource ids.
func (c *PeripheralClient) Register(ctx context.Context, baseURL string, reg Registration) error {
	return c.postJSON(ctx, "register", baseURL+pathRegister, reg)
}

// SetControlWavelength forwards a control wavelength in nm.
func (c *PeripheralClient) SetControlWavelength(ctx context.Context, baseURL string, wavelength float64) error {
	return c.postJSON(ctx, "control_wavelength", baseURL+pathControlWavelength, map[string]float64{
		"wavelength": wavelength,
	})
}

// StartChamber starts the deposition run.
func (c *PeripheralClient) StartChamber(ctx context.Context, baseURL string) error {
	return c.postJSON(ctx, "chamber_start", baseURL+pathChamberStart, nil)
}

// StopChamber stops the deposition run.
func (c *PeripheralClient) StopChamber(ctx context.Context, baseURL string) error {
	return c.postJSON(ctx, "chamber_stop", baseURL+pathChamberStop, nil)
}

// SetMaterial forwards a material label and its deposition fraction.
func (c *PeripheralClient) SetMaterial(ctx context.Context, baseURL, material string, fraction float64) error {
	return c.postJSON(ctx, "chamber_material", baseURL+pathChamberMaterial, struct {
		Material string  `json:"material"`
		Fraction float64 `json:"fraction"`
	}{material, fraction})
}

func (c *PeripheralClient) postJSON(ctx context.Context, op, url string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("discovery: encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, op, http.MethodPost, url, body, nil)
}

// do executes one request. decode, when non-nil, reads a 2xx body.
func (c *PeripheralClient) do(ctx context.Context, op, method, url string, body io.Reader, decode func(io.Reader) error) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(op, err, time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %w", ErrUpstreamTimeout, op, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxInfoBodySize))
		return fmt.Errorf("%w: %s: status %d", ErrUpstreamStatus, op, resp.StatusCode)
	}

	if decode != nil {
		return decode(resp.Body)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxInfoBodySize))
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
