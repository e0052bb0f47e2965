package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BodyLenAttr names the attribute holding the number of body lines
const BodyLenAttr = "list-len"

// Response is one reply: a header, "key: value" attributes ended by a
// blank line, then BodyLenAttr body lines.
type Response struct {
	keys   []string
	values map[string]string
	Body   []string
}

// Error is a reply carrying an error block
type Error struct {
	Cmd  string
	Kind string
	Desc string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Cmd, e.Kind, e.Desc)
}

// NewResponse creates a reply to cmd
func NewResponse(cmd string) *Response {
	r := &Response{values: make(map[string]string)}
	return r.Set("cmd", cmd)
}

// ErrorResponse creates an error reply
func ErrorResponse(cmd, kind, desc string) *Response {
	r := &Response{values: make(map[string]string)}
	return r.Set("error-cmd", cmd).Set("error", kind).Set("desc", desc)
}

// Set adds or replaces an attribute
func (r *Response) Set(key string, value any) *Response {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = strings.ReplaceAll(fmt.Sprint(value), "\n", " ")
	return r
}

// Get returns an attribute
func (r *Response) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Int returns an integer attribute
func (r *Response) Int(key string) (int, error) {
	v, ok := r.values[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", key, err)
	}
	return n, nil
}

// Keys returns the attribute names in the order they were set
func (r *Response) Keys() []string {
	return r.keys
}

// Err returns the error carried by the reply, if any
func (r *Response) Err() error {
	kind, ok := r.values["error"]
	if !ok {
		return nil
	}
	return &Error{Cmd: r.values["error-cmd"], Kind: kind, Desc: r.values["desc"]}
}

// WriteTo writes the reply
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(Header)
	for _, k := range r.keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.values[k])
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, line := range r.Body {
		b.WriteString(strings.ReplaceAll(line, "\n", " "))
		b.WriteByte('\n')
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// ReadResponse reads one reply from r
func ReadResponse(r *bufio.Reader) (*Response, error) {
	header := make([]byte, len(Header))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	if string(header[:3]) != Header[:3] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
	}

	resp := &Response{values: make(map[string]string)}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		resp.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if _, ok := resp.values[BodyLenAttr]; !ok {
		return resp, nil
	}
	n, err := resp.Int(BodyLenAttr)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		resp.Body = append(resp.Body, strings.TrimRight(line, "\n"))
	}
	return resp, nil
}
