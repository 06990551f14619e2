// Package framestore holds the ordered frame slots of a sequence together with
// the single display binding.
//
// Slots are index-aligned for the lifetime of the store: index i always names
// the same frame. A slot's pixels are decoded lazily on first use and a failed
// decode is sticky, so the slot is never retried automatically. The store is
// safe for concurrent use because a background worker appends and decodes
// while the owning controller reads lengths and binds frames.
package framestore

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"imageseq/internal/codec"
	"imageseq/internal/logging"
)

var (
	// ErrOutOfRange reports an index outside [0, Len()).
	ErrOutOfRange = errors.New("frame index out of range")
	// ErrLoadFailed reports a slot whose pixels could not be decoded.
	ErrLoadFailed = errors.New("frame failed to load")
)

// Handle is whatever the uploader returns for a bound frame.
type Handle any

// Filter carries min/mag filter settings straight through to the uploader.
type Filter struct {
	Min int
	Mag int
}

// Uploader makes pixels visible, e.g. as a GPU texture.
type Uploader interface {
	Upload(pixels image.Image, filter Filter) (Handle, error)
}

// Slot is one frame of the sequence.
type Slot struct {
	Identifier string
	Path       string
	Pixels     image.Image
	Failed     bool
}

// Loaded reports whether the slot holds pixels.
func (s Slot) Loaded() bool { return s.Pixels != nil }

// Store is the ordered frame collection.
type Store struct {
	decoder  codec.Decoder
	uploader Uploader
	logger   *slog.Logger

	mu        sync.RWMutex
	slots     []Slot
	filter    Filter
	lastBound int
	handle    Handle
}

// New builds an empty store. A nil uploader makes Bind track the binding
// without uploading anything.
func New(decoder codec.Decoder, uploader Uploader, logger *slog.Logger) *Store {
	return &Store{
		decoder:   decoder,
		uploader:  uploader,
		logger:    logging.NewComponentLogger(logger, "framestore"),
		lastBound: -1,
	}
}

// Append grows the store by one slot and returns its index.
func (s *Store) Append(identifier, path string, pixels image.Image) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, Slot{Identifier: identifier, Path: path, Pixels: pixels})
	return len(s.slots) - 1
}

// Len returns the number of slots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Slot returns a copy of slot i.
func (s *Store) Slot(i int) (Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.slots) {
		return Slot{}, fmt.Errorf("slot %d of %d: %w", i, len(s.slots), ErrOutOfRange)
	}
	return s.slots[i], nil
}

// Slots returns a snapshot of all slots.
func (s *Store) Slots() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Usable counts slots that did not fail.
func (s *Store) Usable() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, slot := range s.slots {
		if !slot.Failed {
			n++
		}
	}
	return n
}

// FirstUsable returns the index of the first loaded, non-failed slot or -1.
func (s *Store) FirstUsable() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, slot := range s.slots {
		if !slot.Failed && slot.Pixels != nil {
			return i
		}
	}
	return -1
}

// MarkFailed flags slot i as failed.
func (s *Store) MarkFailed(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.slots) {
		s.slots[i].Failed = true
	}
}

// Load decodes slot i if it has neither pixels nor a failure flag. The decode
// runs without holding the store lock so readers are never blocked on I/O.
func (s *Store) Load(i int) error {
	s.mu.RLock()
	if i < 0 || i >= len(s.slots) {
		n := len(s.slots)
		s.mu.RUnlock()
		return fmt.Errorf("load %d of %d: %w", i, n, ErrOutOfRange)
	}
	slot := s.slots[i]
	s.mu.RUnlock()

	if slot.Failed {
		return fmt.Errorf("%s: %w", slot.Identifier, ErrLoadFailed)
	}
	if slot.Pixels != nil {
		return nil
	}

	var (
		pixels image.Image
		err    error
	)
	if s.decoder == nil {
		err = errors.New("no decoder configured")
	} else {
		pixels, err = s.decoder.Decode(slot.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.slots) || s.slots[i].Identifier != slot.Identifier {
		// Reset raced with the decode; the slot no longer exists.
		return fmt.Errorf("load %d: %w", i, ErrOutOfRange)
	}
	if err != nil {
		s.slots[i].Failed = true
		s.logger.Warn("frame failed to load",
			logging.Int(logging.FieldFrameIndex, i),
			logging.String(logging.FieldFrameID, slot.Identifier),
			logging.String(logging.FieldPath, slot.Path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "frame_load_failed"),
			logging.String(logging.FieldErrorHint, "check the file is a readable image"),
		)
		return fmt.Errorf("%s: %w: %v", slot.Identifier, ErrLoadFailed, err)
	}
	if s.slots[i].Pixels == nil {
		s.slots[i].Pixels = pixels
	}
	return nil
}

// Bind makes slot i the displayed frame. Binding the already-bound index is a
// no-op; a failed slot leaves the previous binding in place.
func (s *Store) Bind(i int) error {
	s.mu.RLock()
	if i == s.lastBound && i >= 0 {
		s.mu.RUnlock()
		return nil
	}
	n := len(s.slots)
	s.mu.RUnlock()

	if i < 0 || i >= n {
		s.logger.Error("frame index out of bounds",
			logging.Int(logging.FieldFrameIndex, i),
			logging.Int("frame_count", n),
			logging.String(logging.FieldEventType, "frame_bind_out_of_range"),
		)
		return fmt.Errorf("bind %d of %d: %w", i, n, ErrOutOfRange)
	}

	if err := s.Load(i); err != nil {
		return err
	}

	s.mu.RLock()
	slot := s.slots[i]
	filter := s.filter
	s.mu.RUnlock()

	var handle Handle
	if s.uploader != nil {
		h, err := s.uploader.Upload(slot.Pixels, filter)
		if err != nil {
			return fmt.Errorf("upload %s: %w", slot.Identifier, err)
		}
		handle = h
	}

	s.mu.Lock()
	s.lastBound = i
	s.handle = handle
	s.mu.Unlock()
	return nil
}

// LastBound returns the bound index or -1.
func (s *Store) LastBound() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBound
}

// Handle returns the uploader handle of the bound frame.
func (s *Store) Handle() Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// SetFilter changes the filter passed to future uploads.
func (s *Store) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Filter returns the current upload filter.
func (s *Store) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Reset drops every slot and the display binding.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
	s.lastBound = -1
	s.handle = nil
}

// IndexAtPercent maps p onto a slot index. p outside [0,1] wraps by its
// floor, so 1.2 behaves like 0.2 and -0.3 like 0.7.
func (s *Store) IndexAtPercent(p float64) int {
	return IndexAtPercent(p, s.Len())
}

// PercentAtIndex maps i linearly from [0, Len()-1] onto [0,1], clamped.
func (s *Store) PercentAtIndex(i int) float64 {
	return PercentAtIndex(i, s.Len())
}

const indexEpsilon = 1e-9

// IndexAtPercent is the store-independent form of Store.IndexAtPercent.
func IndexAtPercent(p float64, length int) int {
	if length <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	if p < 0 || p > 1 {
		p -= math.Floor(p)
	}
	// 1.2-1 is 0.19999...; the nudge keeps it on the same index as 0.2.
	idx := int(math.Floor(p*float64(length) + indexEpsilon))
	if idx > length-1 {
		idx = length - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// PercentAtIndex is the store-independent form of Store.PercentAtIndex.
func PercentAtIndex(i, length int) float64 {
	if length <= 1 {
		return 0
	}
	p := float64(i) / float64(length-1)
	return math.Max(0, math.Min(1, p))
}
