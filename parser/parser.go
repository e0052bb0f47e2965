package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header opens every request and response stream
const Header = "TXT01"

var (
	// ErrInvalidHeader is returned when a stream does not start with a
	// supported header
	ErrInvalidHeader = errors.New("invalid header")
	// ErrSyntax is returned for a line that is neither a command nor a value.
	// The connection stays usable after it.
	ErrSyntax = errors.New("parse error")
)

// ValueType represents the type of a value on the stack
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeBool
)

// Value represents a value on the stack
type Value struct {
	Type ValueType
	Str  string
	Int  int64
	Bool bool
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []Value
}

// Strings returns the string arguments in stack order
func (c *Command) Strings() []string {
	var out []string
	for _, v := range c.Args {
		if v.Type == TypeString {
			out = append(out, v.Str)
		}
	}
	return out
}

// Ints returns the integer arguments in stack order
func (c *Command) Ints() []int64 {
	var out []int64
	for _, v := range c.Args {
		if v.Type == TypeInt {
			out = append(out, v.Int)
		}
	}
	return out
}

// HasOption reports whether an "opt: <name>" string was pushed
func (c *Command) HasOption(name string) bool {
	for _, s := range c.Strings() {
		if opt, ok := strings.CutPrefix(s, "opt:"); ok && strings.TrimSpace(opt) == name {
			return true
		}
	}
	return false
}

// Parser parses Forth-style commands: values are pushed one per line and
// a command word consumes them.
type Parser struct {
	reader  *bufio.Reader
	header  string
	version string
}

// known command words; anything else is parsed as a value
var commands = map[string]struct{}{
	"filter":    {},
	"0filters":  {},
	"list":      {},
	"list-next": {},
	"run":       {},
	"info":      {},
	"reindex":   {},
	"status":    {},
}

// NewParser reads the stream header and creates a new parser
func NewParser(reader io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(reader),
	}

	headerBytes := make([]byte, len(Header))
	if _, err := io.ReadFull(p.reader, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	p.header = string(headerBytes[:3])
	p.version = string(headerBytes[3:])

	if p.header != Header[:3] {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidHeader, p.header)
	}

	return p, nil
}

// Version returns the protocol version sent in the header
func (p *Parser) Version() string {
	return p.version
}

// ParseCommand parses the next command from input. Values left on the
// stack when the input ends are dropped.
func (p *Parser) ParseCommand() (*Command, error) {
	stack := make([]Value, 0)

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, err
		}

		line = strings.TrimSpace(line)

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if _, ok := commands[line]; ok {
			return &Command{
				Name: line,
				Args: stack,
			}, nil
		}

		value, err := ParseValue(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		stack = append(stack, value)
	}
}

// ParseValue parses one stack value
func ParseValue(line string) (Value, error) {
	line = strings.TrimSpace(line)

	// String value (prefixed with ")
	if str, ok := strings.CutPrefix(line, `"`); ok {
		return Value{Type: TypeString, Str: str}, nil
	}

	// Boolean literals (t/f)
	switch line {
	case "t":
		return Value{Type: TypeBool, Bool: true}, nil
	case "f":
		return Value{Type: TypeBool, Bool: false}, nil
	}

	if intVal, err := strconv.ParseInt(line, 10, 64); err == nil {
		return Value{Type: TypeInt, Int: intVal}, nil
	}

	return Value{}, fmt.Errorf("cannot parse value: %s", line)
}

// FormatString encodes s as a string value line
func FormatString(s string) string {
	return `"` + strings.ReplaceAll(s, "\n", " ")
}

// FormatInt encodes n as an integer value line
func FormatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
