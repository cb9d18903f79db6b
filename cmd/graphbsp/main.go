// Command graphbsp is the driver: it loads a graph, dispatches to one
// of the five registered vertex programs, and prints rank-serialized
// results (or writes random-walk output files).
//
// Argument parsing goes through cobra/pflag even though the CLI
// surface is fixed and non-configurable: cobra's usage rendering and
// flag parsing are still worth having for the "no args" (exit 1,
// usage) vs. "bad graph file" (exit 1, load error) vs. "mid-run
// collective failure" (nonzero) exit-code distinction.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cs425-g28/graphbsp/internal/bsptypes"
	"github.com/cs425-g28/graphbsp/internal/errs"
	"github.com/cs425-g28/graphbsp/internal/loader"
	"github.com/cs425-g28/graphbsp/internal/partition"
	"github.com/cs425-g28/graphbsp/internal/registry"
	"github.com/cs425-g28/graphbsp/internal/result"
	"github.com/cs425-g28/graphbsp/internal/transport"
	"github.com/cs425-g28/graphbsp/internal/vertexprog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// usageError marks an exit-code-1 condition: missing arguments or an
// unknown algorithm name. A load failure (errs.ErrLoad) also exits 1;
// any other failure, such as a collective failure, exits 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func exitCodeFor(err error) int {
	if _, ok := err.(*usageError); ok {
		return 1
	}
	if errors.Is(err, errs.ErrLoad) {
		return 1
	}
	return 2
}

func newRootCmd() *cobra.Command {
	var ranks int
	var tcpRank int
	var tcpPeers string
	var outDir string

	cmd := &cobra.Command{
		Use:           "graphbsp <graphFile> [algoName [args...]]",
		Short:         "distributed bulk-synchronous vertex-centric graph engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return &usageError{msg: "graphbsp: missing graphFile argument\n\n" + cmd.UsageString()}
			}
			graphFile := args[0]
			var algoName string
			var algoArgs []string
			if len(args) > 1 {
				algoName = args[1]
				algoArgs = args[2:]
			}

			reg := registry.NewDefault()
			if algoName != "" {
				if _, ok := reg.Lookup(algoName); !ok {
					return &usageError{msg: fmt.Sprintf("graphbsp: unknown algorithm %q", algoName)}
				}
			}

			if tcpPeers != "" {
				return runTCP(cmd.Context(), tcpRank, strings.Split(tcpPeers, ","), graphFile, algoName, algoArgs, outDir)
			}
			return runLocal(cmd.Context(), ranks, graphFile, algoName, algoArgs, outDir)
		},
	}

	cmd.Flags().IntVar(&ranks, "ranks", 1, "number of in-process ranks for a single-binary demo run")
	cmd.Flags().IntVar(&tcpRank, "tcp-rank", 0, "this process's rank when --tcp-peers is set")
	cmd.Flags().StringVar(&tcpPeers, "tcp-peers", "", "comma-separated host:port list for every rank, in rank order")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for random-walk output files")

	return cmd
}

// runLocal spawns size in-process ranks sharing a transport.NewLocalGroup
// and runs every rank's full load-dispatch-print pipeline concurrently,
// since the BSP contract requires all ranks "in flight" at once for any
// collective to complete.
func runLocal(ctx context.Context, size int, graphFile, algoName string, algoArgs []string, outDir string) error {
	if size < 1 {
		size = 1
	}
	groups := transport.NewLocalGroup(size)

	g, ctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		group := groups[r]
		g.Go(func() error {
			log := newRankLogger(group.Rank())
			return runPipeline(ctx, group, graphFile, algoName, algoArgs, outDir, log)
		})
	}
	return g.Wait()
}

// runTCP runs this single OS process as one rank of a
// transport.DialTCPGroup spanning peers.
func runTCP(ctx context.Context, rank int, peers []string, graphFile, algoName string, algoArgs []string, outDir string) error {
	log := newRankLogger(rank)
	if rank != 0 {
		if err := transport.CheckPeers(ctx, []string{peers[0]}); err != nil {
			return err
		}
	}
	group, err := transport.DialTCPGroup(ctx, rank, peers, log)
	if err != nil {
		return err
	}
	defer group.Close()
	return runPipeline(ctx, group, graphFile, algoName, algoArgs, outDir, log)
}

func newRankLogger(rank int) *zap.Logger {
	base, _ := zap.NewProduction()
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(zap.Int("rank", rank), zap.String("run_id", uuid.NewString()))
}

// runPipeline loads the graph, dispatches to the requested algorithm
// (or pr-then-lpa when algoName is empty), and prints or writes
// results. It is the body every rank runs, whether reached from
// an in-process demo group or a TCP-coordinated one.
func runPipeline(ctx context.Context, group transport.Group, graphFile, algoName string, algoArgs []string, outDir string, log *zap.Logger) error {
	part, _, err := loader.Load(ctx, group, graphFile, log)
	if err != nil {
		return err
	}

	if algoName == "" {
		if err := runPageRankAndPrint(ctx, group, part, []string{}, log); err != nil {
			return err
		}
		return runLPAAndPrint(ctx, group, part, []string{}, log)
	}

	switch algoName {
	case "bfs":
		return runBFSAndPrint(ctx, group, part, algoArgs, log)
	case "cc":
		return runCCAndPrint(ctx, group, part, log)
	case "pr":
		return runPageRankAndPrint(ctx, group, part, algoArgs, log)
	case "lpa":
		return runLPAAndPrint(ctx, group, part, algoArgs, log)
	case "rw":
		return runRandomWalkAndWrite(ctx, group, part, algoArgs, outDir, log)
	default:
		return &usageError{msg: fmt.Sprintf("graphbsp: unknown algorithm %q", algoName)}
	}
}

func runBFSAndPrint(ctx context.Context, group transport.Group, part *partition.Partition, args []string, log *zap.Logger) error {
	source := bsptypes.VertexId(0)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad bfs source %q: %v", args[0], err)}
		}
		source = bsptypes.VertexId(v)
	}

	const maxIter = 1000
	res, err := vertexprog.RunBFS(ctx, group, part, source, maxIter, log)
	if err != nil {
		return err
	}

	lines := make([]result.Line, part.LocalCount())
	for i := range lines {
		lines[i] = result.Line{GlobalID: part.GlobalID(i), Metric: "dist", Value: distString(res.Dist[i])}
	}
	return result.PrintSerialized(ctx, group, os.Stdout, lines)
}

func distString(d uint64) string {
	const infinity = ^uint64(0)
	if d == infinity {
		return "inf"
	}
	return strconv.FormatUint(d, 10)
}

func runCCAndPrint(ctx context.Context, group transport.Group, part *partition.Partition, log *zap.Logger) error {
	const maxIter = 1000
	res, err := vertexprog.RunCC(ctx, group, part, maxIter, log)
	if err != nil {
		return err
	}

	lines := make([]result.Line, part.LocalCount())
	for i := range lines {
		lines[i] = result.Line{GlobalID: part.GlobalID(i), Metric: "cc", Value: strconv.FormatUint(uint64(res.Label[i]), 10)}
	}
	return result.PrintSerialized(ctx, group, os.Stdout, lines)
}

func runPageRankAndPrint(ctx context.Context, group transport.Group, part *partition.Partition, args []string, log *zap.Logger) error {
	damping := 0.85
	iterations := 10
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad pr damping %q: %v", args[0], err)}
		}
		damping = v
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad pr iterations %q: %v", args[1], err)}
		}
		iterations = v
	}

	res, err := vertexprog.RunPageRank(ctx, group, part, damping, iterations, log)
	if err != nil {
		return err
	}

	lines := make([]result.Line, part.LocalCount())
	for i := range lines {
		lines[i] = result.Line{GlobalID: part.GlobalID(i), Metric: "pr", Value: strconv.FormatFloat(res.PR[i], 'f', 6, 64)}
	}
	return result.PrintSerialized(ctx, group, os.Stdout, lines)
}

func runLPAAndPrint(ctx context.Context, group transport.Group, part *partition.Partition, args []string, log *zap.Logger) error {
	iterations := 5
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad lpa iterations %q: %v", args[0], err)}
		}
		iterations = v
	}

	res, err := vertexprog.RunLPA(ctx, group, part, iterations, log)
	if err != nil {
		return err
	}

	lines := make([]result.Line, part.LocalCount())
	for i := range lines {
		lines[i] = result.Line{GlobalID: part.GlobalID(i), Metric: "label", Value: strconv.FormatUint(uint64(res.Label[i]), 10)}
	}
	return result.PrintSerialized(ctx, group, os.Stdout, lines)
}

func runRandomWalkAndWrite(ctx context.Context, group transport.Group, part *partition.Partition, args []string, outDir string, log *zap.Logger) error {
	walkLen := 10
	numWalks := 5
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad rw walkLen %q: %v", args[0], err)}
		}
		walkLen = v
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return &usageError{msg: fmt.Sprintf("graphbsp: bad rw numWalks %q: %v", args[1], err)}
		}
		numWalks = v
	}

	res, err := vertexprog.RunRandomWalk(ctx, group, part, walkLen, numWalks, log)
	if err != nil {
		return err
	}
	return result.WriteWalks(outDir, group.Rank(), res.Active)
}
