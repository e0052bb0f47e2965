package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/parser"
)

const defaultListLimit = 128

// Launcher starts the process for an entry
type Launcher interface {
	Start(e app.Entry, inTerminal bool) (int, error)
}

// CacheStatus reports whether a cached entry set is stored
type CacheStatus interface {
	HasCache() bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithListLimit sets the default page size of list replies
func WithListLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.listLimit = n
		}
	}
}

// WithCacheStatus sets the source of the status command's cached flag
func WithCacheStatus(cs CacheStatus) Option {
	return func(s *Server) {
		s.cache = cs
	}
}

// Server handles Unix socket connections and command execution
type Server struct {
	listener  net.Listener
	path      string
	indexer   *indexer.Indexer
	launcher  Launcher
	cache     CacheStatus
	logger    *slog.Logger
	listLimit int
	ctx       context.Context
	running   bool
	stopped   bool
	mu        sync.RWMutex
	conns     sync.WaitGroup
}

func newServer(idx *indexer.Indexer, launcher Launcher, opts ...Option) *Server {
	s := &Server{
		indexer:   idx,
		launcher:  launcher,
		logger:    slog.Default(),
		listLimit: defaultListLimit,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer creates a server listening on socketPath
func NewServer(socketPath string, idx *indexer.Indexer, launcher Launcher, opts ...Option) (*Server, error) {
	s := newServer(idx, launcher, opts...)

	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, err
	}

	// Remove a stale socket; the caller holds the instance lock
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	s.path = socketPath
	return s, nil
}

// Start accepts connections until ctx is done or Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.Stop()
	})
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				s.conns.Wait()
				return ctx.Err()
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

// Stop stops the server and removes the socket
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.listener == nil {
		return nil
	}
	s.stopped = true
	s.running = false
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	s.logger.Debug("new connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		s.logger.Warn("rejecting connection", "error", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	for {
		cmd, err := p.ParseCommand()
		if errors.Is(err, io.EOF) {
			s.logger.Debug("connection closed by client")
			return
		}
		if errors.Is(err, parser.ErrSyntax) {
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}
		if err != nil {
			s.logger.Debug("connection read failed", "error", err)
			return
		}

		s.logger.Debug("executing command", "cmd", cmd.Name, "args", len(cmd.Args))
		s.executeCommand(conn, cmd)
	}
}

func (s *Server) executeCommand(conn net.Conn, cmd *parser.Command) {
	switch cmd.Name {
	case "filter":
		s.handleFilter(conn, cmd)
	case "0filters":
		s.handleResetFilters(conn)
	case "list":
		s.handleList(conn, 0, s.listLimit)
	case "list-next":
		s.handleListNext(conn, cmd)
	case "run":
		s.handleRun(conn, cmd)
	case "info":
		s.handleInfo(conn, cmd)
	case "reindex":
		s.handleReindex(conn, cmd)
	case "status":
		s.handleStatus(conn)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

func (s *Server) handleFilter(conn net.Conn, cmd *parser.Command) {
	terms := cmd.Strings()
	if len(terms) == 0 {
		s.writeError(conn, "filter", "missing parameter", "filter command requires a string parameter")
		return
	}
	search := strings.Join(terms, " ")

	matches := s.indexer.GetIndex().Filter(search)
	s.logger.Debug("filter applied", "search", search, "matches", matches)

	s.writeResponse(conn, parser.NewResponse("filter").Set("status", 0).Set("matches", matches))
}

func (s *Server) handleResetFilters(conn net.Conn) {
	matches := s.indexer.GetIndex().Filter("")
	s.writeResponse(conn, parser.NewResponse("0filters").Set("status", 0).Set("matches", matches))
}

func (s *Server) handleListNext(conn net.Conn, cmd *parser.Command) {
	ints := cmd.Ints()
	if len(ints) == 0 {
		s.writeError(conn, "list-next", "missing offset", "list-next command requires an offset parameter")
		return
	}

	limit := s.listLimit
	if len(ints) > 1 && ints[1] > 0 {
		limit = toInt(ints[1])
	}
	s.handleList(conn, toInt(ints[0]), limit)
}

// toInt narrows a protocol integer, saturating at the int range
func toInt(v int64) int {
	return int(max(min(v, math.MaxInt), math.MinInt))
}

func (s *Server) handleList(conn net.Conn, offset, limit int) {
	rows, total := s.indexer.GetIndex().Page(offset, limit)

	resp := parser.NewResponse("list").
		Set(parser.BodyLenAttr, len(rows)).
		Set("offset", max(offset, 0)).
		Set("total", total)
	for _, row := range rows {
		resp.Body = append(resp.Body, formatRow(row))
	}

	s.logger.Debug("list", "offset", offset, "rows", len(rows), "total", total)
	s.writeResponse(conn, resp)
}

func formatRow(row indexer.Row) string {
	return strconv.Itoa(row.Pos) + " " + row.Entry.Name
}

func (s *Server) position(conn net.Conn, cmd *parser.Command) (indexer.Ref, bool) {
	ints := cmd.Ints()
	if len(ints) == 0 {
		s.writeError(conn, cmd.Name, "missing id", cmd.Name+" command requires an id parameter")
		return indexer.Ref{}, false
	}

	ref, ok := s.indexer.GetIndex().Resolve(toInt(ints[0]))
	if !ok {
		s.writeError(conn, cmd.Name, "index not found", "Requested index is not in the current list.")
		return indexer.Ref{}, false
	}
	return ref, true
}

func (s *Server) handleRun(conn net.Conn, cmd *parser.Command) {
	ref, ok := s.position(conn, cmd)
	if !ok {
		return
	}
	pos := cmd.Ints()[0]
	terminal := cmd.HasOption("terminal")

	// No index lock is held while the process starts
	pid, err := s.launcher.Start(ref.Entry, terminal)
	if err != nil {
		s.logger.Error("launch failed", "id", ref.Entry.ID, "error", err)
		s.writeError(conn, "run", "execution failed", err.Error())
		return
	}

	persisted := true
	if err := s.indexer.RecordLaunch(ref); err != nil {
		persisted = false
		if !errors.Is(err, indexer.ErrNoStore) && !errors.Is(err, indexer.ErrNotIndexed) {
			s.logger.Warn("usage not persisted", "id", ref.Entry.ID, "error", err)
		}
	}
	if ref.Entry.IsSettings() {
		persisted = false
	}

	s.writeResponse(conn, parser.NewResponse("run").
		Set("idx", pos).
		Set("status", 0).
		Set("pid", pid).
		Set("persisted", persisted))
}

func (s *Server) handleInfo(conn net.Conn, cmd *parser.Command) {
	ref, ok := s.position(conn, cmd)
	if !ok {
		return
	}
	e := ref.Entry
	iconName, _ := s.indexer.Icons().Name(e.Icon)

	s.writeResponse(conn, parser.NewResponse("info").
		Set("id", e.ID).
		Set("name", e.Name).
		Set("kind", e.Kind).
		Set("usage", e.Usage).
		Set("icon", e.Icon).
		Set("icon-name", iconName).
		Set("args", e.Arguments))
}

func (s *Server) handleReindex(conn net.Conn, cmd *parser.Command) {
	var paths []string
	for _, arg := range cmd.Args {
		if arg.Type != parser.TypeString {
			s.writeError(conn, "reindex", "invalid argument", "reindex accepts path strings only")
			return
		}
		paths = append(paths, config.ExpandPath(arg.Str))
	}

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	count, err := s.indexer.Reindex(ctx, paths)
	if err != nil {
		s.logger.Error("reindex failed", "paths", paths, "error", err)
		s.writeError(conn, "reindex", "reindex failed", err.Error())
		return
	}

	s.writeResponse(conn, parser.NewResponse("reindex").Set("status", 0).Set("indexed", count))
}

func (s *Server) handleStatus(conn net.Conn) {
	cached := s.cache != nil && s.cache.HasCache()
	s.writeResponse(conn, parser.NewResponse("status").
		Set("status", 0).
		Set("entries", s.indexer.GetIndex().Count()).
		Set("indexing", s.indexer.IsRunning()).
		Set("cached", cached))
}

func (s *Server) writeResponse(conn net.Conn, resp *parser.Response) {
	n, err := resp.WriteTo(conn)
	if err != nil {
		s.logger.Warn("failed to write response", "error", err)
		return
	}
	s.logger.Debug("response written", "bytes", n)
}

func (s *Server) writeError(conn net.Conn, cmd, errType, desc string) {
	s.logger.Debug("writing error response", "cmd", cmd, "error", errType, "desc", desc)
	s.writeResponse(conn, parser.ErrorResponse(cmd, errType, desc))
}
