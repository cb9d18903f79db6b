package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs425-g28/graphbsp/internal/registry"
)

func TestNewDefaultRegistersAllFive(t *testing.T) {
	r := registry.NewDefault()

	for _, name := range []string{"bfs", "cc", "pr", "lpa", "rw"} {
		_, ok := r.Lookup(name)
		require.True(t, ok, "missing algorithm %q", name)
	}

	_, ok := r.Lookup("not-a-real-algorithm")
	require.False(t, ok)
}

func TestDefaultArgsMatchFixedDefaults(t *testing.T) {
	r := registry.NewDefault()

	pr, _ := r.Lookup("pr")
	require.Equal(t, []string{"0.85", "10"}, pr.DefaultArgs)

	rw, _ := r.Lookup("rw")
	require.Equal(t, []string{"10", "5"}, rw.DefaultArgs)
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	r := registry.New()
	r.Register("bfs", registry.BFS, "0")
	require.Panics(t, func() { r.Register("bfs", registry.BFS, "0") })
}
