package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/errs"
	"github.com/cs425-g28/graphbsp/internal/loader"
	"github.com/cs425-g28/graphbsp/internal/transport"
)

func writeGraphFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoadLineGraph checks that every rank ends up with the same N and
// a Partition whose CSR reflects only the edges it owns.
func TestLoadLineGraph(t *testing.T) {
	path := writeGraphFile(t, "5\n0 1\n1 2\n2 3\n3 4\n")

	const size = 2
	groups := transport.NewLocalGroup(size)

	type out struct {
		n bsptypes.VertexId
	}
	results := make([]out, size)

	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < size; r++ {
		r := r
		g.Go(func() error {
			p, _, err := loader.Load(ctx, groups[r], path, nil)
			if err != nil {
				return err
			}
			results[r].n = p.GlobalCount()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, r := range results {
		require.Equal(t, bsptypes.VertexId(5), r.n)
	}
}

// TestLoadSkipsMalformedLines checks that a line which doesn't parse
// as two base-10 integers is silently skipped rather than erroring.
func TestLoadSkipsMalformedLines(t *testing.T) {
	path := writeGraphFile(t, "3\n0 1\nnot-an-edge\n1 2\n")

	groups := transport.NewLocalGroup(1)
	p, stats, err := loader.Load(context.Background(), groups[0], path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, stats.EdgesAccepted)
	require.Equal(t, 1, stats.EdgesSkipped)
	require.Equal(t, []bsptypes.VertexId{1}, p.Neighbors(0))
	require.Equal(t, []bsptypes.VertexId{2}, p.Neighbors(1))
}

// TestLoadMissingFileIsLoadError checks that a missing file surfaces
// as an *errs.LoadError, not a bare os error.
func TestLoadMissingFileIsLoadError(t *testing.T) {
	groups := transport.NewLocalGroup(1)
	_, _, err := loader.Load(context.Background(), groups[0], "/nonexistent/graph.txt", nil)
	require.Error(t, err)
	var loadErr *errs.LoadError
	require.ErrorAs(t, err, &loadErr)
}
