package device

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

func newTestRegistry() *Registry {
	return NewRegistry(spectral.NewStore())
}

func testDevice(name string) *Device {
	return &Device{
		Type:    DeviceTypeSpectrometer,
		Name:    name,
		Address: "127.0.0.1",
		Port:    8000,
	}
}

func addSpectrometer(t *testing.T, r *Registry, name string, mono bool) *Spectrometer {
	t.Helper()
	s := &Spectrometer{DeviceID: "dev-1", Name: name, IsMonochromatic: mono}
	if err := r.AddSpectrometer(s); err != nil {
		t.Fatalf("AddSpectrometer(%q) error = %v", name, err)
	}
	return s
}

func addChamber(t *testing.T, r *Registry, name string) *VacuumChamber {
	t.Helper()
	c := &VacuumChamber{DeviceID: "dev-1", Name: name}
	if err := r.AddVacuumChamber(c); err != nil {
		t.Fatalf("AddVacuumChamber(%q) error = %v", name, err)
	}
	return c
}

func TestRegistry_AddDevice(t *testing.T) {
	r := newTestRegistry()

	t.Run("assigns id and defaults", func(t *testing.T) {
		d := &Device{Type: DeviceTypeVacuumChamber, Address: "10.0.0.2", Port: 8001}
		if err := r.AddDevice(d); err != nil {
			t.Fatalf("AddDevice() error = %v", err)
		}
		if d.ID == "" {
			t.Error("ID not generated")
		}
		if d.Name != DefaultDeviceName {
			t.Errorf("Name = %q, want %q", d.Name, DefaultDeviceName)
		}
		if d.Status != StatusConnected {
			t.Errorf("Status = %q, want connected", d.Status)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		d := testDevice("A")
		d.ID = "fixed"
		if err := r.AddDevice(d); err != nil {
			t.Fatalf("first AddDevice() error = %v", err)
		}
		dup := testDevice("B")
		dup.ID = "fixed"
		if err := r.AddDevice(dup); !errors.Is(err, ErrDeviceExists) {
			t.Errorf("second AddDevice() error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		d := testDevice("bad")
		d.Type = "oscilloscope"
		if err := r.AddDevice(d); !errors.Is(err, ErrInvalidDeviceType) {
			t.Errorf("AddDevice() error = %v, want ErrInvalidDeviceType", err)
		}
	})
}

func TestRegistry_GetDeviceReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Bench")
	if err := r.AddDevice(d); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	got, err := r.GetDevice(d.ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	got.Name = "mutated"

	again, _ := r.GetDevice(d.ID)
	if again.Name != "Bench" {
		t.Errorf("registry mutated through returned copy: %q", again.Name)
	}

	if _, err := r.GetDevice("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice(missing) error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := r.GetDevice("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDevice(missing) error = %v, want ErrNotFound umbrella", err)
	}
}

func TestRegistry_ListDevicesSorted(t *testing.T) {
	r := newTestRegistry()
	for _, n := range []string{"Charlie", "Alpha", "Bravo"} {
		if err := r.AddDevice(testDevice(n)); err != nil {
			t.Fatalf("AddDevice(%q) error = %v", n, err)
		}
	}
	list := r.ListDevices()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Name != "Alpha" || list[2].Name != "Charlie" {
		t.Errorf("order = %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestRegistry_RemoveDeviceDoesNotCascade(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Bench")
	s := &Spectrometer{Name: "Bench - Spectrometer"}
	if err := r.Provision(d, s, nil); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if err := r.RemoveDevice(d.ID); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}
	if err := r.RemoveDevice(d.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second RemoveDevice() error = %v, want ErrDeviceNotFound", err)
	}

	got, err := r.GetSpectrometer(s.ID)
	if err != nil {
		t.Fatalf("spectrometer removed with its device: %v", err)
	}
	if got.DeviceID != d.ID {
		t.Errorf("DeviceID = %q, want dangling %q", got.DeviceID, d.ID)
	}
}

func TestRegistry_Provision(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Rig")
	d.Capabilities = Capabilities{HasSpectrometer: true, HasVacuumChamber: true}
	s := &Spectrometer{Name: "Rig - Spectrometer", IsMonochromatic: true}
	material := DefaultMaterial
	c := &VacuumChamber{Name: "Rig - Vacuum Chamber", CurrentMaterial: &material}

	if err := r.Provision(d, s, c); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if s.DeviceID != d.ID || c.DeviceID != d.ID {
		t.Errorf("resource device ids = %q, %q, want %q", s.DeviceID, c.DeviceID, d.ID)
	}

	gotC, err := r.GetVacuumChamber(c.ID)
	if err != nil {
		t.Fatalf("GetVacuumChamber() error = %v", err)
	}
	if gotC.Status != ChamberStopped || gotC.ProcessType != ProcessTwoComponent {
		t.Errorf("chamber defaults = %q/%q", gotC.Status, gotC.ProcessType)
	}
	if gotC.CurrentFraction != nil {
		t.Errorf("CurrentFraction = %v, want nil", *gotC.CurrentFraction)
	}
	if gotC.IsActive {
		t.Error("chamber provisioned active")
	}
}

func TestRegistry_ProvisionLeavesNoPartialState(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Rig")
	d.Capabilities = Capabilities{HasVacuumChamber: true, ProcessType: "four-component"}
	c := &VacuumChamber{Name: "Rig - Vacuum Chamber", ProcessType: "four-component"}

	if err := r.Provision(d, nil, c); !errors.Is(err, ErrInvalidProcessType) {
		t.Fatalf("Provision() error = %v, want ErrInvalidProcessType", err)
	}
	if n := len(r.ListDevices()); n != 0 {
		t.Errorf("devices after failed provision = %d, want 0", n)
	}
	if n := len(r.ListVacuumChambers()); n != 0 {
		t.Errorf("chambers after failed provision = %d, want 0", n)
	}
}

func TestRegistry_ProvisionDerivedNames(t *testing.T) {
	tests := []struct {
		name       string
		deviceName string
	}{
		{name: "long ascii name", deviceName: strings.Repeat("n", 90)},
		{name: "name at limit", deviceName: strings.Repeat("n", maxNameLength)},
		{name: "name over limit", deviceName: strings.Repeat("n", 3*maxNameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			d := testDevice(tt.deviceName)
			s := &Spectrometer{Name: tt.deviceName + " - Spectrometer"}
			c := &VacuumChamber{Name: tt.deviceName + " - Vacuum Chamber"}

			if err := r.Provision(d, s, c); err != nil {
				t.Fatalf("Provision() error = %v", err)
			}
			got, err := r.GetSpectrometer(s.ID)
			if err != nil {
				t.Fatalf("GetSpectrometer() error = %v", err)
			}
			if got.Name != tt.deviceName+" - Spectrometer" {
				t.Errorf("Name = %q", got.Name)
			}
		})
	}

	t.Run("operator names keep the limit", func(t *testing.T) {
		r := newTestRegistry()
		s := &Spectrometer{DeviceID: "dev-1", Name: strings.Repeat("n", maxNameLength+1)}
		if err := r.AddSpectrometer(s); !errors.Is(err, ErrInvalidName) {
			t.Errorf("AddSpectrometer() error = %v, want ErrInvalidName", err)
		}
		c := &VacuumChamber{DeviceID: "dev-1", Name: strings.Repeat("n", maxNameLength+1)}
		if err := r.AddVacuumChamber(c); !errors.Is(err, ErrInvalidName) {
			t.Errorf("AddVacuumChamber() error = %v, want ErrInvalidName", err)
		}
	})
}

func TestRegistry_ProvisionIgnoresProcessTypeWithoutChamber(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Bench")
	d.Capabilities = Capabilities{HasSpectrometer: true, ProcessType: "ellipsometry"}
	s := &Spectrometer{Name: "Bench - Spectrometer"}

	if err := r.Provision(d, s, nil); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	got, err := r.GetDevice(d.ID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Capabilities.ProcessType != "ellipsometry" {
		t.Errorf("ProcessType = %q, want the declared value kept", got.Capabilities.ProcessType)
	}
}

func TestRegistry_SetDeviceStatus(t *testing.T) {
	r := newTestRegistry()
	d := testDevice("Bench")
	if err := r.AddDevice(d); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	changed, err := r.SetDeviceStatus(d.ID, StatusError)
	if err != nil || !changed {
		t.Fatalf("SetDeviceStatus(error) = %v, %v, want true, nil", changed, err)
	}
	got, _ := r.GetDevice(d.ID)
	if got.Status != StatusError {
		t.Errorf("Status = %q, want %q", got.Status, StatusError)
	}

	changed, err = r.SetDeviceStatus(d.ID, StatusError)
	if err != nil || changed {
		t.Errorf("repeat SetDeviceStatus() = %v, %v, want false, nil", changed, err)
	}
	if _, err := r.SetDeviceStatus(d.ID, "flaky"); err == nil {
		t.Error("SetDeviceStatus(flaky) error = nil, want error")
	}
	if _, err := r.SetDeviceStatus("missing", StatusConnected); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetDeviceStatus(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_SetActive(t *testing.T) {
	r := newTestRegistry()
	a := addSpectrometer(t, r, "A", false)
	b := addSpectrometer(t, r, "B", false)

	if _, ok := r.ActiveSpectrometer(); ok {
		t.Fatal("active spectrometer before any activation")
	}

	if err := r.SetActive(KindSpectrometer, a.ID); err != nil {
		t.Fatalf("SetActive(A) error = %v", err)
	}
	if err := r.SetActive(KindSpectrometer, b.ID); err != nil {
		t.Fatalf("SetActive(B) error = %v", err)
	}

	gotA, _ := r.GetSpectrometer(a.ID)
	gotB, _ := r.GetSpectrometer(b.ID)
	if gotA.IsActive || !gotB.IsActive {
		t.Errorf("A.active=%v B.active=%v, want false/true", gotA.IsActive, gotB.IsActive)
	}

	t.Run("unknown id leaves state unchanged", func(t *testing.T) {
		err := r.SetActive(KindSpectrometer, "missing")
		if !errors.Is(err, ErrSpectrometerNotFound) {
			t.Fatalf("SetActive(missing) error = %v, want ErrSpectrometerNotFound", err)
		}
		if id := r.ActiveID(KindSpectrometer); id != b.ID {
			t.Errorf("active = %q, want %q", id, b.ID)
		}
	})

	t.Run("kinds are independent", func(t *testing.T) {
		c := addChamber(t, r, "C")
		if _, err := r.ActivateVacuumChamber(c.ID); err != nil {
			t.Fatalf("ActivateVacuumChamber() error = %v", err)
		}
		if id := r.ActiveID(KindSpectrometer); id != b.ID {
			t.Errorf("spectrometer active = %q after chamber activation, want %q", id, b.ID)
		}
		if id := r.ActiveID(KindVacuumChamber); id != c.ID {
			t.Errorf("chamber active = %q, want %q", id, c.ID)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		if err := r.SetActive("laser", a.ID); !errors.Is(err, ErrInvalidKind) {
			t.Errorf("SetActive(laser) error = %v, want ErrInvalidKind", err)
		}
	})
}

func TestRegistry_SetActiveNeverObservesTwo(t *testing.T) {
	r := newTestRegistry()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = addSpectrometer(t, r, "S", false).ID
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errCh := make(chan string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			active := 0
			for _, s := range r.ListSpectrometers() {
				if s.IsActive {
					active++
				}
			}
			if active > 1 {
				select {
				case errCh <- "observed more than one active spectrometer":
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 500; i++ {
		if err := r.SetActive(KindSpectrometer, ids[i%len(ids)]); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-errCh:
		t.Fatal(msg)
	default:
	}
}

func TestRegistry_UpdateSpectrometer(t *testing.T) {
	r := newTestRegistry()
	mono := addSpectrometer(t, r, "Mono", true)
	broad := addSpectrometer(t, r, "Broad", false)

	wl := 532.0
	got, err := r.UpdateSpectrometer(mono.ID, SpectrometerPatch{ControlWavelength: &wl})
	if err != nil {
		t.Fatalf("UpdateSpectrometer(mono) error = %v", err)
	}
	if got.ControlWavelength == nil || *got.ControlWavelength != 532 {
		t.Errorf("ControlWavelength = %v, want 532", got.ControlWavelength)
	}

	_, err = r.UpdateSpectrometer(broad.ID, SpectrometerPatch{ControlWavelength: &wl})
	if !errors.Is(err, ErrNotMonochromatic) {
		t.Fatalf("UpdateSpectrometer(broad) error = %v, want ErrNotMonochromatic", err)
	}
	unchanged, _ := r.GetSpectrometer(broad.ID)
	if unchanged.ControlWavelength != nil {
		t.Errorf("non-monochromatic spectrometer changed: %v", *unchanged.ControlWavelength)
	}

	bad := -1.0
	if _, err := r.UpdateSpectrometer(mono.ID, SpectrometerPatch{ControlWavelength: &bad}); !errors.Is(err, ErrInvalidWavelength) {
		t.Errorf("negative wavelength error = %v, want ErrInvalidWavelength", err)
	}
	if _, err := r.UpdateSpectrometer("missing", SpectrometerPatch{}); !errors.Is(err, ErrSpectrometerNotFound) {
		t.Errorf("missing error = %v, want ErrSpectrometerNotFound", err)
	}
}

func TestRegistry_UpdateVacuumChamber(t *testing.T) {
	r := newTestRegistry()
	c := addChamber(t, r, "Chamber")

	running := ChamberRunning
	material := "L"
	fraction := 0.25
	got, err := r.UpdateVacuumChamber(c.ID, VacuumChamberPatch{
		Status:   &running,
		Material: &material,
		Fraction: &fraction,
	})
	if err != nil {
		t.Fatalf("UpdateVacuumChamber() error = %v", err)
	}
	if got.Status != ChamberRunning || *got.CurrentMaterial != "L" || *got.CurrentFraction != 0.25 {
		t.Errorf("chamber = %+v", got)
	}

	over := 150.0
	if _, err := r.UpdateVacuumChamber(c.ID, VacuumChamberPatch{Fraction: &over}); !errors.Is(err, ErrInvalidFraction) {
		t.Errorf("fraction 150 error = %v, want ErrInvalidFraction", err)
	}
	bogus := ChamberStatus("paused")
	if _, err := r.UpdateVacuumChamber(c.ID, VacuumChamberPatch{Status: &bogus}); err == nil {
		t.Error("status paused accepted")
	}
}

func TestRegistry_SamplesFollowSpectrometer(t *testing.T) {
	r := newTestRegistry()
	s := addSpectrometer(t, r, "S", false)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, ok, err := r.LatestSample(s.ID); err != nil || ok {
		t.Fatalf("LatestSample() before post = ok %v, err %v", ok, err)
	}

	first := spectral.Sample{Timestamp: ts, Readings: []float64{1, 2}, Wavelengths: []float64{400, 410}}
	if err := r.RecordSample(s.ID, first); err != nil {
		t.Fatalf("RecordSample() error = %v", err)
	}
	second := spectral.Sample{Timestamp: ts.Add(time.Second), Readings: []float64{3, 4}, Wavelengths: []float64{400, 410}}
	if err := r.RecordSample(s.ID, second); err != nil {
		t.Fatalf("RecordSample() error = %v", err)
	}

	got, ok, err := r.LatestSample(s.ID)
	if err != nil || !ok {
		t.Fatalf("LatestSample() = ok %v, err %v", ok, err)
	}
	if got.Readings[0] != 3 || !got.Timestamp.Equal(second.Timestamp) {
		t.Errorf("latest = %+v, want second sample", got)
	}

	if err := r.RecordSample("missing", first); !errors.Is(err, ErrSpectrometerNotFound) {
		t.Errorf("RecordSample(missing) error = %v, want ErrSpectrometerNotFound", err)
	}

	if err := r.RemoveSpectrometer(s.ID); err != nil {
		t.Fatalf("RemoveSpectrometer() error = %v", err)
	}
	if _, _, err := r.LatestSample(s.ID); !errors.Is(err, ErrSpectrometerNotFound) {
		t.Errorf("LatestSample() after remove error = %v, want ErrSpectrometerNotFound", err)
	}

	// Re-adding the same id must not resurrect the old sample.
	again := &Spectrometer{ID: s.ID, Name: "S"}
	if err := r.AddSpectrometer(again); err != nil {
		t.Fatalf("AddSpectrometer() error = %v", err)
	}
	if _, ok, _ := r.LatestSample(s.ID); ok {
		t.Error("stale sample returned after remove and re-add")
	}
}

func TestRegistry_RemoveVacuumChamber(t *testing.T) {
	r := newTestRegistry()
	c := addChamber(t, r, "C")
	if err := r.RemoveVacuumChamber(c.ID); err != nil {
		t.Fatalf("RemoveVacuumChamber() error = %v", err)
	}
	if err := r.RemoveVacuumChamber(c.ID); !errors.Is(err, ErrChamberNotFound) {
		t.Errorf("second remove error = %v, want ErrChamberNotFound", err)
	}
}

func TestRegistry_AddSpectrometerWithWavelengthRequiresMono(t *testing.T) {
	r := newTestRegistry()
	wl := 500.0
	s := &Spectrometer{Name: "S", ControlWavelength: &wl}
	if err := r.AddSpectrometer(s); !errors.Is(err, ErrNotMonochromatic) {
		t.Errorf("AddSpectrometer() error = %v, want ErrNotMonochromatic", err)
	}
}

func TestRegistry_GetStats(t *testing.T) {
	r := newTestRegistry()
	_ = r.AddDevice(testDevice("A"))
	d := testDevice("B")
	d.Type = DeviceTypeVacuumChamber
	_ = r.AddDevice(d)
	addSpectrometer(t, r, "S", false)

	stats := r.GetStats()
	if stats.TotalDevices != 2 || stats.Spectrometers != 1 || stats.VacuumChambers != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByType[DeviceTypeVacuumChamber] != 1 {
		t.Errorf("ByType[vacuum-chamber] = %d, want 1", stats.ByType[DeviceTypeVacuumChamber])
	}
}
