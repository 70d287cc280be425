package request

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultMaxBodyBytes caps the Content-Length a Parser accepts.
	DefaultMaxBodyBytes = 10 << 20

	contentLengthHeader = "Content-Length"
	headerSeparator     = ": "
)

// Parser reads one request from a stream. A Parser holds no per-request
// state and may be shared between goroutines.
type Parser struct {
	maxBodyBytes int
	newID        func() string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxBodyBytes sets the largest Content-Length accepted for a POST body.
func WithMaxBodyBytes(n int) Option {
	return func(p *Parser) {
		p.maxBodyBytes = n
	}
}

// WithIDGenerator replaces the request id generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Parser) {
		p.newID = fn
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxBodyBytes: DefaultMaxBodyBytes,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse reads one request from r using default settings.
func Parse(r io.Reader) (*Request, error) {
	return defaultParser.Parse(r)
}

// Parse reads one request from r. It blocks until the header block and, for
// POST, the declared body have been read or the stream ends.
//
// Errors:
//   - *IOError when the stream fails or ends before the blank line that
//     terminates the header block.
//   - *FormatError when the request line is missing or a POST carries a
//     missing, non-numeric, negative or oversized Content-Length.
//   - *TruncatedBodyError when the stream ends inside the body. The request
//     is returned as well, holding the bytes that did arrive.
//
// Methods other than GET and POST parse as MethodUnknown and no body is read
// for them, even when the sender included one.
//
// If r is not a *bufio.Reader it is wrapped in one, which may read past the
// end of the request.
func (p *Parser) Parse(r io.Reader) (*Request, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	lines, err := readHeaderBlock(br)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &FormatError{Field: "request line", Err: ErrMissingRequestLine}
	}

	rawMethod, target := splitRequestLine(lines[0])
	path, query := splitTarget(target)

	req := &Request{
		id:        p.newID(),
		rawMethod: rawMethod,
		path:      path,
		query:     query,
		headers:   parseHeaders(lines[1:]),
	}

	switch Method(rawMethod) {
	case MethodGet:
		req.method = MethodGet
	case MethodPost:
		req.method = MethodPost
		if err := p.readBody(br, req); err != nil {
			if errors.Is(err, ErrTruncatedBody) {
				slog.Debug("request: body truncated", "request_id", req.id, "path", req.path, "error", err)
				return req, err
			}
			return nil, err
		}
	default:
		req.method = MethodUnknown
		slog.Debug("request: unsupported method, body not read", "request_id", req.id, "method", rawMethod)
	}

	slog.Debug("request: parsed", "request_id", req.id, "method", rawMethod, "path", req.path)
	return req, nil
}

// readHeaderBlock returns the lines before the first empty line.
func readHeaderBlock(br *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &IOError{Op: "reading header block", Err: err}
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if line == "" {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// splitRequestLine returns the upper-cased method token and the raw target.
func splitRequestLine(line string) (method, target string) {
	parts := strings.Split(line, " ")
	method = strings.ToUpper(parts[0])
	if len(parts) > 1 {
		target = parts[1]
	}
	return method, target
}

// splitTarget separates the path from its query parameters. Pairs without
// "=" are dropped; repeated keys keep arrival order.
func splitTarget(target string) (string, map[string][]string) {
	query := make(map[string][]string)

	path, rawQuery, found := strings.Cut(target, "?")
	if !found {
		return path, query
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		query[key] = append(query[key], value)
	}
	return path, query
}

// parseHeaders splits "Name: Value" lines. Lines without the separator are
// skipped and a later duplicate replaces an earlier one.
func parseHeaders(lines []string) map[string]string {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, headerSeparator)
		if !ok {
			continue
		}
		headers[name] = value
	}
	return headers
}

func (p *Parser) readBody(br *bufio.Reader, req *Request) error {
	raw, ok := req.headers[contentLengthHeader]
	if !ok {
		return &FormatError{Field: contentLengthHeader, Err: ErrMissingContentLength}
	}

	length, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return &FormatError{Field: contentLengthHeader, Value: raw, Err: err}
	}
	if length < 0 {
		return &FormatError{Field: contentLengthHeader, Value: raw, Err: errors.New("negative length")}
	}
	if length > p.maxBodyBytes {
		return &FormatError{Field: contentLengthHeader, Value: raw, Err: ErrBodyTooLarge}
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(br, buf)
	req.hasBody = true
	req.body = string(buf[:n])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &TruncatedBodyError{Declared: length, Read: n}
	default:
		return &IOError{Op: "reading body", Err: err}
	}
}
