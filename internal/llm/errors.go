package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/s33g/typedchat/internal/chat"
)

var (
	// ErrTransport matches every TransportError.
	ErrTransport = errors.New("transport failure")
	// ErrAPI matches every APIError.
	ErrAPI = errors.New("api returned an error")
	// ErrRefused matches every RefusalError.
	ErrRefused = errors.New("model refused to answer")

	ErrNoChoices     = errors.New("response has no choices")
	ErrNoContent     = errors.New("response message has no content")
	ErrWrongSchema   = errors.New("response message does not match the requested schema")
	ErrToolNotCalled = errors.New("response has no call to the requested tool")
)

// TransportError is a failure to exchange bytes with the server: network
// errors, timeouts, and non-2xx replies without an error envelope.
type TransportError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("POST %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("POST %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// APIError carries an error envelope returned in place of a completion.
type APIError struct {
	Response *chat.ErrorResponse
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: %s", e.Response.Message)
	if e.Response.Type != "" {
		msg += " (type " + e.Response.Type + ")"
	}
	if e.Response.Code != nil {
		msg += " (code " + e.Response.Code.String() + ")"
	}
	return msg
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// InvalidResponseError is a completion that decoded but cannot satisfy the
// caller. Err is one of the ErrNo*/ErrWrongSchema/ErrToolNotCalled
// sentinels; RawContent keeps the message text when there was one.
type InvalidResponseError struct {
	Err        error
	Response   *chat.Response
	RawContent string
}

func (e *InvalidResponseError) Error() string {
	if e.RawContent != "" {
		return fmt.Sprintf("%v: %q", e.Err, truncate(e.RawContent, 200))
	}
	return e.Err.Error()
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// RefusalError is a reply in which the model declined the request.
type RefusalError struct {
	Refusal  string
	Response *chat.Response
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRefused, e.Refusal)
}

func (e *RefusalError) Is(target error) bool { return target == ErrRefused }

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
