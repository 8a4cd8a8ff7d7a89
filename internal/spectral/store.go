// Package spectral holds the latest spectral sample per spectrometer.
//
// Only the most recent sample is retained. Every Put overwrites the slot for
// that spectrometer; there is no history.
package spectral

import (
	"sync"
	"time"
)

// Sample is one spectral acquisition.
//
// Readings and Wavelengths are parallel sequences. The store does not check
// that they have equal length or that the wavelength grid is ordered.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	Readings    []float64 `json:"calibrated_readings"`
	Wavelengths []float64 `json:"wavelengths"`
}

// Clone returns an independent copy of the sample.
func (s Sample) Clone() Sample {
	cpy := s
	if s.Readings != nil {
		cpy.Readings = append([]float64(nil), s.Readings...)
	}
	if s.Wavelengths != nil {
		cpy.Wavelengths = append([]float64(nil), s.Wavelengths...)
	}
	return cpy
}

// Store is a keyed latest-value cache, one slot per spectrometer id.
//
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	slots map[string]Sample
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{slots: make(map[string]Sample)}
}

// Put overwrites the slot for spectrometerID.
func (s *Store) Put(spectrometerID string, sample Sample) {
	s.mu.Lock()
	s.slots[spectrometerID] = sample.Clone()
	s.mu.Unlock()
}

// Get returns the latest sample for spectrometerID, or false if none was
// ever written.
func (s *Store) Get(spectrometerID string) (Sample, bool) {
	s.mu.RLock()
	sample, ok := s.slots[spectrometerID]
	s.mu.RUnlock()
	if !ok {
		return Sample{}, false
	}
	return sample.Clone(), true
}

// Delete removes the slot for spectrometerID. Deleting an absent slot is a no-op.
func (s *Store) Delete(spectrometerID string) {
	s.mu.Lock()
	delete(s.slots, spectrometerID)
	s.mu.Unlock()
}

// Len returns the number of occupied slots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}
