package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestErrorNames verifies that every taxonomy error has a name.
func TestErrorNames(t *testing.T) {
	r := require.New(t)

	for sentinel, name := range ErrorNames {
		r.NotEmpty(name)
		r.Equal(name, ErrorName(sentinel))
	}
}

func TestErrorNameWrapped(t *testing.T) {
	r := require.New(t)

	err := fmt.Errorf("getVersion: %w: connection refused", ErrNoConnection)
	r.Equal("ErrNoConnection", ErrorName(err))
}

func TestErrorNameUnknown(t *testing.T) {
	r := require.New(t)

	err := errors.New("something else")
	r.Equal("something else", ErrorName(err))
}

func TestErrorNameNil(t *testing.T) {
	r := require.New(t)
	r.Equal("", ErrorName(nil))
}
