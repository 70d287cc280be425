// Package request parses the minimal line-oriented request grammar:
//
//	METHOD SP PATH[?QUERY] ...
//	Name: Value
//	...
//	<empty line>
//	[Content-Length bytes of body, POST only]
//
// There is no chunked encoding, multipart parsing, percent-decoding or
// header-name case normalization.
package request

import "sort"

// Method is the normalized request method.
type Method string

// Recognized methods. Anything else parses as MethodUnknown.
const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodUnknown Method = "UNKNOWN"
)

// Request is a parsed request. It is immutable; accessors return copies.
type Request struct {
	id        string
	method    Method
	rawMethod string
	path      string
	query     map[string][]string
	headers   map[string]string
	body      string
	hasBody   bool
}

// ID returns the identifier assigned when the request was parsed.
func (r *Request) ID() string { return r.id }

// Method returns GET, POST or UNKNOWN.
func (r *Request) Method() Method { return r.method }

// RawMethod returns the upper-cased method token as received.
func (r *Request) RawMethod() string { return r.rawMethod }

// Path returns the request path without its query string.
func (r *Request) Path() string { return r.path }

// Query returns the values of a query parameter in arrival order, or nil.
func (r *Request) Query(key string) []string {
	values, ok := r.query[key]
	if !ok {
		return nil
	}
	return append([]string(nil), values...)
}

// HasQuery reports whether the query parameter was present.
func (r *Request) HasQuery(key string) bool {
	_, ok := r.query[key]
	return ok
}

// QueryKeys returns the query parameter names, sorted.
func (r *Request) QueryKeys() []string {
	return sortedKeys(r.query)
}

// Header returns the value of a header. Names are case-sensitive.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[name]
	return v, ok
}

// HeaderKeys returns the header names, sorted.
func (r *Request) HeaderKeys() []string {
	return sortedKeys(r.headers)
}

// Headers returns a copy of all headers.
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Body returns the request body. It is empty unless HasBody is true.
func (r *Request) Body() string { return r.body }

// HasBody reports whether a body was read, which only happens for POST.
func (r *Request) HasBody() bool { return r.hasBody }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
