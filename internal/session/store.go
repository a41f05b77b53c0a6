package session

import (
	"context"
	"errors"
	"math"
	"sync"
)

// Clamp bounds applied on every write. Callers never observe values outside
// these ranges.
const (
	MinStrength = 0.0
	MaxStrength = 1.0
	MinSeed     = 0
	MaxSeed     = 999_999_999_999_999
)

var (
	// ErrNoImage is returned when an ingestion carries no image bytes.
	ErrNoImage = errors.New("session: no image bytes")
	// ErrInvalidPayload is returned when a trigger payload is not a mapping.
	ErrInvalidPayload = errors.New("session: trigger payload must be a mapping")
	// ErrNoTrigger is returned when no trigger payload is supplied or stored.
	ErrNoTrigger = errors.New("session: no trigger payload stored")
)

// Store holds the latest canvas exchange state shared between the browser
// frontend and the pipeline host. One instance lives for the daemon's
// lifetime; every handler receives it by reference. All fields are guarded
// by a single mutex and every read returns a copy, so in-flight responses
// are never corrupted by concurrent writes.
type Store struct {
	mu sync.Mutex

	inputImage  []byte
	outputImage []byte
	prompt      string
	negative    string
	strength    float64
	seed        int64
	trigger     map[string]any
	counter     int64

	inputReady chan struct{}
}

// Snapshot is a consistent copy of the store taken under the lock.
type Snapshot struct {
	InputImage  []byte
	OutputImage []byte
	Prompt      string
	Negative    string
	Strength    float64
	Seed        int64
	Counter     int64
}

// InputOptions carries the optional prompt fields accompanying an ingestion.
// Nil pointers leave the stored value untouched.
type InputOptions struct {
	Prompt   *string
	Negative *string
	Strength *float64
	Seed     *int64
}

// NewStore returns an empty store with the documented field defaults.
func NewStore() *Store {
	return &Store{
		strength:   1.0,
		inputReady: make(chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		InputImage:  cloneBytes(s.inputImage),
		OutputImage: cloneBytes(s.outputImage),
		Prompt:      s.prompt,
		Negative:    s.negative,
		Strength:    s.strength,
		Seed:        s.seed,
		Counter:     s.counter,
	}
}

// SetInput stores a new input image and any supplied prompt fields, returning
// the new generation counter. Prompt fields update even when the image is
// absent, but the counter only advances on a non-empty image; an empty image
// returns ErrNoImage so callers know nothing was ingested.
func (s *Store) SetInput(image []byte, opts InputOptions) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Prompt != nil {
		s.prompt = *opts.Prompt
	}
	if opts.Negative != nil {
		s.negative = *opts.Negative
	}
	if opts.Strength != nil {
		s.strength = clampStrength(*opts.Strength)
	}
	if opts.Seed != nil {
		s.seed = clampSeed(*opts.Seed)
	}

	if len(image) == 0 {
		return s.counter, ErrNoImage
	}

	s.inputImage = cloneBytes(image)
	s.counter++

	// Wake every long-poll waiter; the next ingestion gets a fresh channel.
	close(s.inputReady)
	s.inputReady = make(chan struct{})

	return s.counter, nil
}

// SetOutput stores a new output image.
func (s *Store) SetOutput(image []byte) error {
	if len(image) == 0 {
		return ErrNoImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputImage = cloneBytes(image)
	return nil
}

// SetTrigger stores a pipeline-host submission payload for later forwarding.
// A failed validation leaves any previously stored payload untouched.
func (s *Store) SetTrigger(payload map[string]any) error {
	if payload == nil {
		return ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = payload
	return nil
}

// TriggerOr returns the explicit payload when supplied, otherwise the stored
// one. ErrNoTrigger signals that neither exists.
func (s *Store) TriggerOr(explicit map[string]any) (map[string]any, error) {
	if explicit != nil {
		return explicit, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trigger == nil {
		return nil, ErrNoTrigger
	}
	return s.trigger, nil
}

// HasTrigger reports whether a payload is stored.
func (s *Store) HasTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger != nil
}

// Counter returns the current generation counter.
func (s *Store) Counter() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// AwaitInput blocks until the generation counter advances past since or the
// context ends. It returns the counter observed on wakeup. This backs the
// /get/input long-poll so producers need no fixed-interval polling.
func (s *Store) AwaitInput(ctx context.Context, since int64) (int64, error) {
	for {
		s.mu.Lock()
		counter := s.counter
		ready := s.inputReady
		s.mu.Unlock()

		if counter > since {
			return counter, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return counter, ctx.Err()
		}
	}
}

// PromptPresent reports whether any prompt-bundle field has left its initial
// default. The bundle endpoint answers "no content" only while all four are
// simultaneously at their defaults.
func (s *Store) PromptPresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt != "" || s.negative != "" || s.strength != 1.0 || s.seed != 0
}

func clampStrength(value float64) float64 {
	if math.IsNaN(value) {
		return MaxStrength
	}
	return math.Min(MaxStrength, math.Max(MinStrength, value))
}

func clampSeed(value int64) int64 {
	if value < MinSeed {
		return MinSeed
	}
	if value > MaxSeed {
		return MaxSeed
	}
	return value
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
