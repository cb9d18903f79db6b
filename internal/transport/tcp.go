package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// opCode tags a collective request frame so the root can dispatch it to
// the right reduceFn and decode its payload.
type opCode byte

const (
	opBarrier opCode = iota
	opSumI32
	opSumF64
	opMaxI32
	opBroadcast
	opAlltoall
	opAlltoallv
)

// tcpGroup is the deployable Group implementation: rank 0 acts as the
// collective coordinator over net.Dial/net.Listen, collecting every
// other rank's request and reply once per collective call. The actual
// aggregation logic is shared with localGroup via localHub, so rank 0's
// own participation and every remote rank's forwarded contribution go
// through the identical reduceFn.
type tcpGroup struct {
	rank  int
	addrs []string // addrs[r] is rank r's "host:port"; only addrs[0] is dialed by non-root ranks

	log *zap.Logger

	// root-only state
	listener net.Listener
	hub      *localHub
	acceptWG sync.WaitGroup
}

// DialTCPGroup builds this rank's handle onto a TCP-coordinated group.
// addrs must list every rank's listen address in rank order; rank 0's
// address is where the coordinator listens. Non-root ranks do not bind
// a listener at all.
func DialTCPGroup(ctx context.Context, rank int, addrs []string, log *zap.Logger) (Group, error) {
	if rank < 0 || rank >= len(addrs) {
		return nil, fmt.Errorf("transport: rank %d out of range for %d addrs", rank, len(addrs))
	}
	g := &tcpGroup{rank: rank, addrs: addrs, log: log}
	if rank == 0 {
		ln, err := net.Listen("tcp", addrs[0])
		if err != nil {
			return nil, wrapErr("listen", rank, err)
		}
		g.listener = ln
		g.hub = newLocalHub(len(addrs))
		g.acceptWG.Add(1)
		go g.acceptLoop()
	}
	return g, nil
}

func (g *tcpGroup) Rank() int { return g.rank }
func (g *tcpGroup) Size() int { return len(g.addrs) }

func (g *tcpGroup) Close() error {
	if g.listener != nil {
		err := g.listener.Close()
		g.acceptWG.Wait()
		return err
	}
	return nil
}

// acceptLoop runs only on rank 0: every inbound connection carries one
// collective request from one peer rank; it is decoded, folded into the
// shared hub, and answered once the whole group has arrived.
func (g *tcpGroup) acceptLoop() {
	defer g.acceptWG.Done()
	for {
		conn, err := g.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go g.serveConn(conn)
	}
}

func (g *tcpGroup) serveConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	op, senderRank, payload, err := readFrame(r)
	if err != nil {
		if g.log != nil {
			g.log.Warn("transport: bad frame from peer", zap.Error(err))
		}
		return
	}
	contribution, reduceFn, err := decodeRequest(op, payload, len(g.addrs))
	if err != nil {
		if g.log != nil {
			g.log.Warn("transport: bad request payload", zap.Error(err))
		}
		return
	}
	res, err := g.hub.collective(context.Background(), senderRank, contribution, reduceFn)
	if err != nil {
		return
	}
	_ = writeFrame(conn, op, senderRank, encodeResult(op, res))
}

// dialRoot performs one request/response round-trip with rank 0 for a
// non-root rank: a fresh connection per collective, one-shot
// dial-write-close.
func (g *tcpGroup) dialRoot(ctx context.Context, op opCode, payload []byte) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.addrs[0])
	if err != nil {
		return nil, wrapErr(opName(op), g.rank, err)
	}
	defer conn.Close()
	if err := writeFrame(conn, op, g.rank, payload); err != nil {
		return nil, wrapErr(opName(op), g.rank, err)
	}
	_, _, resp, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return nil, wrapErr(opName(op), g.rank, err)
	}
	return resp, nil
}

// roundTrip runs a collective on rank 0 directly through the shared
// hub, or relays it to rank 0 over TCP for any other rank.
func (g *tcpGroup) roundTrip(ctx context.Context, op opCode, contribution any, reduceFn func([]any) ([]any, error), encode func(any) []byte, decode func([]byte) (any, error)) (any, error) {
	if g.rank == 0 {
		res, err := g.hub.collective(ctx, 0, contribution, reduceFn)
		return res, wrapErr(opName(op), 0, err)
	}
	resp, err := g.dialRoot(ctx, op, encode(contribution))
	if err != nil {
		return nil, err
	}
	res, err := decode(resp)
	if err != nil {
		return nil, wrapErr(opName(op), g.rank, err)
	}
	return res, nil
}

func (g *tcpGroup) Barrier(ctx context.Context) error {
	_, err := g.roundTrip(ctx, opBarrier, nil,
		func(c []any) ([]any, error) { return make([]any, len(c)), nil },
		func(any) []byte { return nil },
		func([]byte) (any, error) { return nil, nil })
	return err
}

func (g *tcpGroup) AllreduceSumInt32(ctx context.Context, v int32) (int32, error) {
	res, err := g.roundTrip(ctx, opSumI32, v,
		func(c []any) ([]any, error) {
			var sum int32
			for _, x := range c {
				sum += x.(int32)
			}
			return fillAll(len(c), sum), nil
		},
		func(v any) []byte { return i32Bytes(v.(int32)) },
		func(b []byte) (any, error) { return bytesI32(b), nil })
	if err != nil {
		return 0, err
	}
	return res.(int32), nil
}

func (g *tcpGroup) AllreduceSumFloat64(ctx context.Context, v float64) (float64, error) {
	res, err := g.roundTrip(ctx, opSumF64, v,
		func(c []any) ([]any, error) {
			var sum float64
			for _, x := range c {
				sum += x.(float64)
			}
			return fillAll(len(c), sum), nil
		},
		func(v any) []byte { return f64Bytes(v.(float64)) },
		func(b []byte) (any, error) { return bytesF64(b), nil })
	if err != nil {
		return 0, err
	}
	return res.(float64), nil
}

func (g *tcpGroup) AllreduceMaxInt32(ctx context.Context, v int32) (int32, error) {
	res, err := g.roundTrip(ctx, opMaxI32, v,
		func(c []any) ([]any, error) {
			max := c[0].(int32)
			for _, x := range c[1:] {
				if x.(int32) > max {
					max = x.(int32)
				}
			}
			return fillAll(len(c), max), nil
		},
		func(v any) []byte { return i32Bytes(v.(int32)) },
		func(b []byte) (any, error) { return bytesI32(b), nil })
	if err != nil {
		return 0, err
	}
	return res.(int32), nil
}

func (g *tcpGroup) Broadcast(ctx context.Context, buf []byte, root int) ([]byte, error) {
	res, err := g.roundTrip(ctx, opBroadcast, broadcastContribution{root: root, buf: buf},
		func(c []any) ([]any, error) {
			r := c[0].(broadcastContribution).root
			if r < 0 || r >= len(c) {
				return nil, fmt.Errorf("broadcast: invalid root %d", r)
			}
			src := c[r].(broadcastContribution).buf
			return fillAll(len(c), append([]byte{}, src...)), nil
		},
		func(v any) []byte { return encodeBroadcast(v.(broadcastContribution)) },
		func(b []byte) (any, error) { return append([]byte{}, b...), nil })
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (g *tcpGroup) Alltoall(ctx context.Context, counts []int32) ([]int32, error) {
	res, err := g.roundTrip(ctx, opAlltoall, counts,
		func(c []any) ([]any, error) {
			n := len(c)
			out := make([]any, n)
			for dst := 0; dst < n; dst++ {
				recv := make([]int32, n)
				for src := 0; src < n; src++ {
					recv[src] = c[src].([]int32)[dst]
				}
				out[dst] = recv
			}
			return out, nil
		},
		func(v any) []byte { return i32SliceBytes(v.([]int32)) },
		func(b []byte) (any, error) { return bytesI32Slice(b), nil })
	if err != nil {
		return nil, err
	}
	return res.([]int32), nil
}

func (g *tcpGroup) Alltoallv(ctx context.Context, send [][]byte) ([][]byte, error) {
	res, err := g.roundTrip(ctx, opAlltoallv, send,
		func(c []any) ([]any, error) {
			n := len(c)
			out := make([]any, n)
			for dst := 0; dst < n; dst++ {
				recv := make([][]byte, n)
				for src := 0; src < n; src++ {
					recv[src] = c[src].([][]byte)[dst]
				}
				out[dst] = recv
			}
			return out, nil
		},
		func(v any) []byte { return byteMatrixBytes(v.([][]byte)) },
		func(b []byte) (any, error) { return bytesByteMatrix(b) })
	if err != nil {
		return nil, err
	}
	return res.([][]byte), nil
}

func opName(op opCode) string {
	switch op {
	case opBarrier:
		return "barrier"
	case opSumI32:
		return "allreduce_sum_int32"
	case opSumF64:
		return "allreduce_sum_float64"
	case opMaxI32:
		return "allreduce_max_int32"
	case opBroadcast:
		return "broadcast"
	case opAlltoall:
		return "alltoall"
	case opAlltoallv:
		return "alltoallv"
	default:
		return "unknown"
	}
}

// ---- frame wire format: [op:1][rank:4][len:4][payload:len] ----

func writeFrame(w io.Writer, op opCode, rank int, payload []byte) error {
	hdr := make([]byte, 9)
	hdr[0] = byte(op)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(rank))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (opCode, int, []byte, error) {
	hdr := make([]byte, 9)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, 0, nil, err
	}
	op := opCode(hdr[0])
	rank := int(binary.LittleEndian.Uint32(hdr[1:5]))
	n := binary.LittleEndian.Uint32(hdr[5:9])
	if n == 0 {
		return op, rank, nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, 0, nil, err
	}
	return op, rank, payload, nil
}

// decodeRequest reconstructs the typed contribution and picks the
// matching reduceFn for a request frame received on rank 0.
func decodeRequest(op opCode, payload []byte, size int) (any, func([]any) ([]any, error), error) {
	switch op {
	case opBarrier:
		return nil, func(c []any) ([]any, error) { return make([]any, len(c)), nil }, nil
	case opSumI32:
		return bytesI32(payload), func(c []any) ([]any, error) {
			var sum int32
			for _, x := range c {
				sum += x.(int32)
			}
			return fillAll(len(c), sum), nil
		}, nil
	case opSumF64:
		return bytesF64(payload), func(c []any) ([]any, error) {
			var sum float64
			for _, x := range c {
				sum += x.(float64)
			}
			return fillAll(len(c), sum), nil
		}, nil
	case opMaxI32:
		return bytesI32(payload), func(c []any) ([]any, error) {
			max := c[0].(int32)
			for _, x := range c[1:] {
				if x.(int32) > max {
					max = x.(int32)
				}
			}
			return fillAll(len(c), max), nil
		}, nil
	case opBroadcast:
		bc, err := decodeBroadcast(payload)
		return bc, func(c []any) ([]any, error) {
			r := c[0].(broadcastContribution).root
			if r < 0 || r >= len(c) {
				return nil, fmt.Errorf("broadcast: invalid root %d", r)
			}
			src := c[r].(broadcastContribution).buf
			return fillAll(len(c), append([]byte{}, src...)), nil
		}, err
	case opAlltoall:
		counts := bytesI32Slice(payload)
		return counts, func(c []any) ([]any, error) {
			n := len(c)
			out := make([]any, n)
			for dst := 0; dst < n; dst++ {
				recv := make([]int32, n)
				for src := 0; src < n; src++ {
					recv[src] = c[src].([]int32)[dst]
				}
				out[dst] = recv
			}
			return out, nil
		}, nil
	case opAlltoallv:
		mat, err := bytesByteMatrix(payload)
		return mat, func(c []any) ([]any, error) {
			n := len(c)
			out := make([]any, n)
			for dst := 0; dst < n; dst++ {
				recv := make([][]byte, n)
				for src := 0; src < n; src++ {
					recv[src] = c[src].([][]byte)[dst]
				}
				out[dst] = recv
			}
			return out, nil
		}, err
	default:
		return nil, nil, fmt.Errorf("transport: unknown opcode %d", op)
	}
}

func encodeResult(op opCode, res any) []byte {
	switch op {
	case opBarrier:
		return nil
	case opSumI32, opMaxI32:
		return i32Bytes(res.(int32))
	case opSumF64:
		return f64Bytes(res.(float64))
	case opBroadcast:
		return res.([]byte)
	case opAlltoall:
		return i32SliceBytes(res.([]int32))
	case opAlltoallv:
		return byteMatrixBytes(res.([][]byte))
	default:
		return nil
	}
}

func i32Bytes(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func bytesI32(b []byte) int32 {
	if len(b) < 4 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func f64Bytes(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func bytesF64(b []byte) float64 {
	if len(b) < 8 {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func i32SliceBytes(vals []int32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
	return b
}

func bytesI32Slice(b []byte) []int32 {
	n := len(b) / 4
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func byteMatrixBytes(mat [][]byte) []byte {
	var out []byte
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(len(mat)))
	out = append(out, hdr...)
	for _, row := range mat {
		lenHdr := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenHdr, uint32(len(row)))
		out = append(out, lenHdr...)
		out = append(out, row...)
	}
	return out
}

func bytesByteMatrix(b []byte) ([][]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("transport: truncated byte matrix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	out := make([][]byte, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("transport: truncated byte matrix row %d", i)
		}
		l := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < l {
			return nil, fmt.Errorf("transport: truncated byte matrix row %d body", i)
		}
		out[i] = append([]byte{}, b[:l]...)
		b = b[l:]
	}
	return out, nil
}

func encodeBroadcast(bc broadcastContribution) []byte {
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(bc.root))
	return append(hdr, bc.buf...)
}

func decodeBroadcast(b []byte) (broadcastContribution, error) {
	if len(b) < 4 {
		return broadcastContribution{}, fmt.Errorf("transport: truncated broadcast payload")
	}
	root := int(binary.LittleEndian.Uint32(b[:4]))
	return broadcastContribution{root: root, buf: append([]byte{}, b[4:]...)}, nil
}

// CheckPeers sanity-checks that every address in addrs accepts a TCP
// connection, used by the driver before starting a TCP-coordinated run
// so a typo'd peer address fails fast instead of surfacing as a
// confusing mid-collective timeout. Every address is dialed
// concurrently through an errgroup; only the first dial failure is
// returned, and it cancels the dials still in progress.
func CheckPeers(ctx context.Context, addrs []string) error {
	return dialAll(ctx, addrs)
}

func dialAll(ctx context.Context, addrs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range addrs {
		addr := a
		g.Go(func() error {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			return conn.Close()
		})
	}
	return g.Wait()
}
