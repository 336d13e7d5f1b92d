// Package server implements the TCP front end of a distcache node: one
// goroutine per connection, each reading whitespace-delimited command
// lines and replying in RESP framing.
//
// Grounded on _examples/original_source/src/network/TCPServer.{h,cpp}'s
// collaborator shape (cache, WAL, hash ring, circuit breaker, metrics
// wired in at construction) and its process_command dispatch table,
// replaced here with an idiomatic net.Listener accept loop instead of
// the source's fixed-iteration client simulation.
package server

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/distcache-io/distcache/internal/breaker"
	"github.com/distcache-io/distcache/internal/cacheerrors"
	"github.com/distcache-io/distcache/internal/hashring"
	"github.com/distcache-io/distcache/internal/lrucache"
	"github.com/distcache-io/distcache/internal/metrics"
	"github.com/distcache-io/distcache/internal/resp"
	"github.com/distcache-io/distcache/internal/wal"
)

// Durable is the subset of *wal.WAL the server depends on, so tests can
// substitute a fake without touching disk. LockMutation/UnlockMutation
// must bracket an Append and its corresponding cache mutate as a single
// unit, so a concurrent checkpoint (see internal/node) never observes
// one without the other.
type Durable interface {
	Append(op wal.Op, key string, value []byte) error
	LockMutation()
	UnlockMutation()
}

// Server is the TCP front end binding the hot-path collaborators
// together per request.
type Server struct {
	nodeID  string
	cache   *lrucache.Cache
	log     Durable
	ring    *hashring.Ring
	breaker *breaker.CircuitBreaker
	metrics metrics.Collector

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	active   int

	wg sync.WaitGroup
}

// New builds a Server. metrics may be nil, in which case events are
// discarded (metrics.NoOp semantics).
func New(nodeID string, cache *lrucache.Cache, log Durable, ring *hashring.Ring, cb *breaker.CircuitBreaker, mc metrics.Collector) *Server {
	if mc == nil {
		mc = metrics.NoOp{}
	}
	return &Server{
		nodeID:  nodeID,
		cache:   cache,
		log:     log,
		ring:    ring,
		breaker: cb,
		metrics: mc,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds addr and accepts connections until ctx is
// canceled or Close is called. It returns once the listener has stopped
// accepting and every in-flight connection has been closed.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			return nil
		}
		s.track(conn)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections and closes every tracked
// connection. Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	return nil
}

// ActiveConnections returns the current number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	n := len(s.conns)
	s.mu.Unlock()
	s.metrics.RecordActiveConnections(n)
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	n := len(s.conns)
	s.mu.Unlock()
	s.metrics.RecordActiveConnections(n)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer s.untrack(conn)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		reply := s.dispatch(line)
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

// dispatch runs the request pipeline for one command line: breaker gate
// -> ring ownership check -> WAL append on mutation -> cache operation
// -> breaker outcome recording, so a mutation is logged before it is
// acknowledged (spec.md §2).
func (s *Server) dispatch(line string) string {
	start := time.Now()
	cmd := resp.Parse(line)

	if !s.breaker.AllowRequest() {
		s.metrics.RecordRequest(time.Since(start).Nanoseconds(), cacheerrors.NewErrBreakerOpen())
		return resp.Error("BREAKER circuit open")
	}

	reply, err := s.execute(cmd)

	if err == nil {
		s.breaker.RecordSuccess()
	} else if !isClientError(err) {
		s.breaker.RecordFailure()
	}
	s.metrics.RecordRequest(time.Since(start).Nanoseconds(), err)
	return reply
}

// isClientError reports whether err is a client-caused error (spec.md §7:
// unknown command / wrong arity never trip the breaker) as opposed to a
// transient server fault (WAL I/O).
func isClientError(err error) bool {
	code, ok := cacheerrors.Code(err)
	return ok && (code == cacheerrors.ErrCodeUnknownCmd || code == cacheerrors.ErrCodeWrongArity)
}

func (s *Server) execute(cmd resp.Command) (string, error) {
	switch cmd.Name {
	case "":
		return resp.Error("ERR empty command"), cacheerrors.NewErrUnknownCommand("")
	case "PING":
		return resp.Simple("PONG"), nil
	case "SET":
		return s.handleSet(cmd)
	case "GET":
		return s.handleGet(cmd)
	case "DEL":
		return s.handleDel(cmd)
	case "EXISTS":
		return s.handleExists(cmd)
	default:
		return resp.Error("ERR unknown command '" + cmd.Name + "'"), cacheerrors.NewErrUnknownCommand(cmd.Name)
	}
}

func (s *Server) owner(key string) (string, bool) {
	owner := s.ring.GetNode(key)
	return owner, owner == s.nodeID
}

func (s *Server) handleSet(cmd resp.Command) (string, error) {
	if len(cmd.Args) < 2 {
		err := cacheerrors.NewErrWrongArity("SET", len(cmd.Args))
		return resp.Error("ERR wrong number of arguments for 'set'"), err
	}
	key, value := cmd.Args[0], cmd.Args[1]
	if owner, local := s.owner(key); !local {
		return resp.Error("MOVED " + owner), nil
	}

	s.log.LockMutation()
	defer s.log.UnlockMutation()
	if err := s.log.Append(wal.OpSet, key, []byte(value)); err != nil {
		return resp.Error("ERR " + err.Error()), err
	}
	s.cache.Set(key, []byte(value), 0)
	return resp.Simple("OK"), nil
}

func (s *Server) handleGet(cmd resp.Command) (string, error) {
	if len(cmd.Args) < 1 {
		return resp.Error("ERR wrong number of arguments for 'get'"), cacheerrors.NewErrWrongArity("GET", len(cmd.Args))
	}
	key := cmd.Args[0]
	if owner, local := s.owner(key); !local {
		return resp.Error("MOVED " + owner), nil
	}
	val, ok := s.cache.Get(key)
	if !ok {
		return resp.Nil(), nil
	}
	return resp.Bulk(val), nil
}

func (s *Server) handleDel(cmd resp.Command) (string, error) {
	if len(cmd.Args) < 1 {
		return resp.Error("ERR wrong number of arguments for 'del'"), cacheerrors.NewErrWrongArity("DEL", len(cmd.Args))
	}
	key := cmd.Args[0]
	if owner, local := s.owner(key); !local {
		return resp.Error("MOVED " + owner), nil
	}
	s.log.LockMutation()
	defer s.log.UnlockMutation()
	if err := s.log.Append(wal.OpDel, key, nil); err != nil {
		return resp.Error("ERR " + err.Error()), err
	}
	s.cache.Delete(key)
	return resp.Simple("OK"), nil
}

func (s *Server) handleExists(cmd resp.Command) (string, error) {
	if len(cmd.Args) < 1 {
		return resp.Error("ERR wrong number of arguments for 'exists'"), cacheerrors.NewErrWrongArity("EXISTS", len(cmd.Args))
	}
	key := cmd.Args[0]
	if owner, local := s.owner(key); !local {
		return resp.Error("MOVED " + owner), nil
	}
	if s.cache.Exists(key) {
		return resp.Integer(1), nil
	}
	return resp.Integer(0), nil
}
