package launch

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/parser"
)

// Application is one row of the filtered list
type Application struct {
	Pos  int
	Name string
}

// Page is one list reply
type Page struct {
	Apps   []Application
	Offset int
	Total  int
}

// RunResult describes a started launch
type RunResult struct {
	Pos       int
	PID       int
	Persisted bool
}

// Info describes one entry
type Info struct {
	ID       string
	Name     string
	Kind     string
	Usage    uint64
	Icon     int32
	IconName string
	Args     string
}

// Status describes the daemon state
type Status struct {
	Entries  int
	Indexing bool
	Cached   bool
}

// Client handles connection to the ade-launchd server
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	mu   sync.Mutex
}

// NewClient connects to the socket named by the environment
func NewClient() (*Client, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}
	return Dial(socketPath)
}

// Dial connects to the server at socketPath
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}
	c, err := NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClientConn starts a session over an established connection
func NewClientConn(conn net.Conn) (*Client, error) {
	if _, err := io.WriteString(conn, parser.Header); err != nil {
		return nil, fmt.Errorf("failed to send header: %w", err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// call sends values followed by cmd and reads the reply. Server side
// errors are returned as *parser.Error.
func (c *Client) call(cmd string, values ...string) (*parser.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	for _, v := range values {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteString(cmd)
	b.WriteByte('\n')

	if _, err := io.WriteString(c.conn, b.String()); err != nil {
		return nil, fmt.Errorf("failed to send %s command: %w", cmd, err)
	}

	resp, err := parser.ReadResponse(c.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Filter narrows the list to names matching search and returns the
// number of matches. An empty search resets the list.
func (c *Client) Filter(search string) (int, error) {
	if search == "" {
		return c.ResetFilters()
	}
	resp, err := c.call("filter", parser.FormatString(search))
	if err != nil {
		return 0, err
	}
	return resp.Int("matches")
}

// ResetFilters shows every entry again
func (c *Client) ResetFilters() (int, error) {
	resp, err := c.call("0filters")
	if err != nil {
		return 0, err
	}
	return resp.Int("matches")
}

// List returns the first page of the current list
func (c *Client) List() (Page, error) {
	resp, err := c.call("list")
	if err != nil {
		return Page{}, err
	}
	return parsePage(resp)
}

// ListNext returns the page starting at offset. A limit of 0 uses the
// server default.
func (c *Client) ListNext(offset, limit int) (Page, error) {
	values := []string{parser.FormatInt(int64(offset))}
	if limit > 0 {
		values = append(values, parser.FormatInt(int64(limit)))
	}
	resp, err := c.call("list-next", values...)
	if err != nil {
		return Page{}, err
	}
	return parsePage(resp)
}

func parsePage(resp *parser.Response) (Page, error) {
	var page Page
	var err error
	if page.Offset, err = resp.Int("offset"); err != nil {
		return Page{}, err
	}
	if page.Total, err = resp.Int("total"); err != nil {
		return Page{}, err
	}

	for _, line := range resp.Body {
		pos, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(pos)
		if err != nil {
			continue
		}
		page.Apps = append(page.Apps, Application{Pos: n, Name: name})
	}
	return page, nil
}

// Run launches the entry at pos of the current list
func (c *Client) Run(pos int, terminal bool) (RunResult, error) {
	var values []string
	if terminal {
		values = append(values, parser.FormatString("opt: terminal"))
	}
	values = append(values, parser.FormatInt(int64(pos)))

	resp, err := c.call("run", values...)
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{Pos: pos}
	if res.PID, err = resp.Int("pid"); err != nil {
		return RunResult{}, err
	}
	persisted, _ := resp.Get("persisted")
	res.Persisted, _ = strconv.ParseBool(persisted)
	return res, nil
}

// Info describes the entry at pos of the current list
func (c *Client) Info(pos int) (Info, error) {
	resp, err := c.call("info", parser.FormatInt(int64(pos)))
	if err != nil {
		return Info{}, err
	}

	get := func(key string) string {
		v, _ := resp.Get(key)
		return v
	}
	info := Info{
		ID:       get("id"),
		Name:     get("name"),
		Kind:     get("kind"),
		IconName: get("icon-name"),
		Args:     get("args"),
	}
	info.Usage, _ = strconv.ParseUint(get("usage"), 10, 64)
	icon, _ := strconv.ParseInt(get("icon"), 10, 32)
	info.Icon = int32(icon)
	return info, nil
}

// Reindex rescans sources, looking for executables in paths when given,
// and returns the number of indexed entries.
func (c *Client) Reindex(paths ...string) (int, error) {
	values := make([]string, len(paths))
	for i, p := range paths {
		values[i] = parser.FormatString(p)
	}
	resp, err := c.call("reindex", values...)
	if err != nil {
		return 0, err
	}
	return resp.Int("indexed")
}

// Status returns the daemon state
func (c *Client) Status() (Status, error) {
	resp, err := c.call("status")
	if err != nil {
		return Status{}, err
	}

	var st Status
	if st.Entries, err = resp.Int("entries"); err != nil {
		return Status{}, err
	}
	indexing, _ := resp.Get("indexing")
	cached, _ := resp.Get("cached")
	st.Indexing, _ = strconv.ParseBool(indexing)
	st.Cached, _ = strconv.ParseBool(cached)
	return st, nil
}
