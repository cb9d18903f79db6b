package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs425-g28/graphbsp/internal/errs"
)

func TestLoadErrorIsErrLoad(t *testing.T) {
	err := &errs.LoadError{Path: "graph.txt", Err: errors.New("boom")}
	require.True(t, errors.Is(err, errs.ErrLoad))
	require.False(t, errors.Is(err, errs.ErrTransport))
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &errs.TransportError{Op: "barrier", Rank: 2, Cause: cause}
	require.True(t, errors.Is(err, errs.ErrTransport))
	require.ErrorIs(t, err, cause)
}
