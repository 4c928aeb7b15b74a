package chathistory

import (
	"time"

	"github.com/google/uuid"
)

type IDGenerator func() string

// Options contains configuration for a conversation memory
type Options struct {
	GenerateID   IDGenerator      // Function to generate the session ID
	Clock        func() time.Time // Source of transcript timestamps
}

// Option is a function type to modify Options
type Option func(*Options)

// DefaultIDGenerator generates a UUID string
func DefaultIDGenerator() string {
	return uuid.New().String()
}

// WithGenerateID sets the ID generation function
func WithGenerateID(generator IDGenerator) Option {
	return func(o *Options) {
		o.GenerateID = generator
	}
}

// WithClock sets the clock used for transcript timestamps
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// DefaultOptions returns the default options
func DefaultOptions() *Options {
	return &Options{
		GenerateID: DefaultIDGenerator,
		Clock:      time.Now,
	}
}
