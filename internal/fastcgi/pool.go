// Package fastcgi implements the per-request FastCGI dispatch pool (C3) and
// the CGI response parser (C4).
package fastcgi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"

	"github.com/yookoala/gofast"
)

// ErrorKind classifies a DispatchError.
type ErrorKind string

const (
	KindIO            ErrorKind = "IO"
	KindFastCGI       ErrorKind = "FASTCGI"
	KindEmptyResponse ErrorKind = "EMPTY_RESPONSE"
)

// DispatchError reports a failure in Pool.Dispatch, distinct from a
// malformed response (see ResponseError in response.go).
type DispatchError struct {
	Kind ErrorKind
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("fastcgi dispatch (%s): %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ScriptOutput is the raw stdout/stderr pair a dispatch produced.
type ScriptOutput struct {
	Stdout []byte
	Stderr []byte
}

// Pool dispatches requests to a single FastCGI responder. Per spec, each
// call establishes a fresh TCP connection — no connection pooling — keeping
// per-request isolation simple. A Pool is safe for concurrent use by
// multiple workers: it holds no per-request mutable state.
type Pool struct {
	network    string
	address    string
	scriptPath string
	staticEnv  map[string]string

	clientFactory func() (gofast.Client, error)
}

// NewPool constructs a Pool dialing (network, address) for every dispatch,
// invoking scriptPath, overlaying staticEnv (configuration) beneath
// per-request overrides.
func NewPool(network, address, scriptPath string, staticEnv map[string]string) *Pool {
	connFactory := gofast.SimpleConnFactory(network, address)
	return &Pool{
		network:       network,
		address:       address,
		scriptPath:    scriptPath,
		staticEnv:     staticEnv,
		clientFactory: gofast.SimpleClientFactory(connFactory),
	}
}

// Dispatch sends stdin to the configured responder with a CGI environment
// assembled from the essential defaults, the Pool's static environment, and
// the per-request overrides (later layers win), and returns the raw
// stdout/stderr the responder produced.
func (p *Pool) Dispatch(stdin []byte, overrides map[string]string) (*ScriptOutput, error) {
	client, err := p.clientFactory()
	if err != nil {
		return nil, &DispatchError{Kind: KindIO, Err: err}
	}
	defer client.Close()

	req := gofast.NewRequest(io.NopCloser(bytes.NewReader(stdin)))
	req.Role = gofast.RoleResponder
	req.Params = p.assembleParams(stdin, overrides)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &DispatchError{Kind: KindFastCGI, Err: err}
	}

	// gofast.ResponsePipe exposes no raw stdout/stderr reader of its own —
	// WriteTo is the only public way to drain it, and it already interprets
	// the CGI response (status/headers) into an http.ResponseWriter. Capture
	// that into a recorder/buffer pair, as the grounding connector does, then
	// rebuild a CGI-shaped byte stream so C4's parser still does the actual
	// header/status interpretation rather than duplicating it here.
	recorder := httptest.NewRecorder()
	stderrBuf := &bytes.Buffer{}
	if err := resp.WriteTo(recorder, stderrBuf); err != nil {
		return nil, &DispatchError{Kind: KindIO, Err: err}
	}

	if recorder.Body.Len() == 0 && len(recorder.Header()) == 0 {
		return nil, &DispatchError{Kind: KindEmptyResponse, Err: fmt.Errorf("responder produced no stdout")}
	}

	return &ScriptOutput{Stdout: reconstructCGIResponse(recorder), Stderr: stderrBuf.Bytes()}, nil
}

// reconstructCGIResponse rebuilds a CGI-shaped header+body stream (RFC 3875
// §6) from what gofast already parsed into the recorder. gofast's WriteTo
// only exposes the result through an http.ResponseWriter, whose Header() is
// an unordered map — the original wire order of the responder's headers is
// not recoverable through gofast's public API, so headers are serialized in
// a deterministic sorted order instead (see DESIGN.md).
func reconstructCGIResponse(recorder *httptest.ResponseRecorder) []byte {
	var buf bytes.Buffer

	if recorder.Code != 0 && recorder.Code != 200 {
		fmt.Fprintf(&buf, "Status: %d %s\r\n", recorder.Code, http.StatusText(recorder.Code))
	}

	names := make([]string, 0, len(recorder.Header()))
	for name := range recorder.Header() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range recorder.Header()[name] {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}
	buf.WriteString("\r\n")
	buf.Write(recorder.Body.Bytes())

	return buf.Bytes()
}

// assembleParams layers essential defaults, the static configuration
// environment, and per-request overrides, in that order (later overwrites
// earlier), per spec.md §4.3.
func (p *Pool) assembleParams(stdin []byte, overrides map[string]string) map[string]string {
	params := map[string]string{
		"CONTENT_LENGTH":  strconv.Itoa(len(stdin)),
		"QUERY_STRING":    "",
		"REMOTE_ADDR":     "127.0.0.1",
		"REQUEST_METHOD":  "POST",
		"SCRIPT_FILENAME": p.scriptPath,
		"SCRIPT_NAME":     "/",
		"SERVER_NAME":     "localhost",
		"SERVER_PORT":     "443",
		"SERVER_SOFTWARE": "fcgiq",
	}
	for k, v := range p.staticEnv {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	return params
}
