// Package result implements the rank-serialized output formats: the
// "V[<globalId>]: <metric>=<value>" line format shared by BFS, CC,
// PageRank, and LPA, and the walks_out_<rank>.txt writer for random
// walk.
package result

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/wire"
)

// Line is one "V[<globalId>]: <metric>=<value>" record.
type Line struct {
	GlobalID bsptypes.VertexId
	Metric   string
	Value    string
}

// PrintSerialized writes lines to w after barriering every other rank
// so that rank r's output appears strictly after every rank below it,
// without needing a dedicated transport primitive: each rank waits its
// turn on a plain Barrier before writing, then every rank (including
// the writer) barriers again before the next rank's turn begins.
func PrintSerialized(ctx context.Context, group transport.Group, w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)
	for turn := 0; turn < group.Size(); turn++ {
		if group.Rank() == turn {
			for _, l := range lines {
				if _, err := fmt.Fprintf(bw, "V[%d]: %s=%s\n", l.GlobalID, l.Metric, l.Value); err != nil {
					return err
				}
			}
			if err := bw.Flush(); err != nil {
				return err
			}
		}
		if err := group.Barrier(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WriteWalks writes one line per walk in walks to walks_out_<rank>.txt
// under dir, each line the walk's full path as space-separated global
// vertex ids, in arbitrary order.
func WriteWalks(dir string, rank int, walks [][]wire.Walk) error {
	path := fmt.Sprintf("%s/walks_out_%d.txt", dir, rank)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("result: create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, perVertex := range walks {
		for _, w := range perVertex {
			if err := writeWalkLine(bw, w); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writeWalkLine(bw *bufio.Writer, w wire.Walk) error {
	var sb strings.Builder
	for i, v := range w.Path {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteByte('\n')
	_, err := bw.WriteString(sb.String())
	return err
}
