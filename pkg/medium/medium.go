package medium

import (
	"context"
	"io"

	"go.uber.org/multierr"

	"github.com/minutespa/minutespa/internal/errors"
)

// Medium is a persistent key/value store for serialized state values.
// Implementations must be safe for concurrent use.
type Medium interface {
	// Has reports whether a value is stored under key.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the value stored under key.
	// Returns ("", false, nil) if the key doesn't exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Lister is implemented by media that can enumerate their keys.
type Lister interface {
	// Keys returns every stored key with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrClosed is returned when operations are attempted on a closed medium.
var ErrClosed = errors.New("M023")

// Close closes every medium that implements io.Closer and combines the errors.
func Close(media ...Medium) error {
	var err error
	for _, m := range media {
		if c, ok := m.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
