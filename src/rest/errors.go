package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorKind classifies a non-success REST response.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindTooManyRequests
	KindServerError
)

var (
	ErrBadRequest       = errors.New("malformed request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limited")
	ErrServerError      = errors.New("discord server error")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// KindFromStatus maps an HTTP status code to an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusMethodNotAllowed:
		return KindMethodNotAllowed
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	}
	if status >= 500 {
		return KindServerError
	}
	return KindUnknown
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBadRequest:
		return ErrBadRequest
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindMethodNotAllowed:
		return ErrMethodNotAllowed
	case KindTooManyRequests:
		return ErrRateLimited
	case KindServerError:
		return ErrServerError
	default:
		return ErrUnexpectedStatus
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// HTTPError is returned for every non-2xx response. errors.Is matches it
// against the sentinel of its kind, e.g. errors.Is(err, rest.ErrNotFound).
type HTTPError struct {
	Kind   ErrorKind
	Status int
	Method string
	Route  string

	// Discord JSON error body.
	// https://discord.com/developers/docs/reference#error-messages
	Code    int
	Message string
	Errors  []string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message provided by discord"
	}
	s := fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Route, e.Status, e.Kind, msg)
	if len(e.Errors) > 0 {
		s += " (" + strings.Join(e.Errors, "; ") + ")"
	}
	return s
}

func (e *HTTPError) Unwrap() error {
	return e.Kind.sentinel()
}

// IsKind reports whether err is an HTTPError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.Kind == kind
}

type errorBody struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Errors  map[string]any `json:"errors,omitempty"`
}

func newHTTPError(method, route string, status int, body []byte) *HTTPError {
	httpErr := &HTTPError{
		Kind:   KindFromStatus(status),
		Status: status,
		Method: method,
		Route:  route,
	}
	eb := errorBody{}
	if err := json.Unmarshal(body, &eb); err != nil {
		return httpErr
	}
	httpErr.Code = eb.Code
	httpErr.Message = eb.Message
	httpErr.Errors = flattenErrors("", eb.Errors, nil)
	return httpErr
}

// flattenErrors walks Discord's nested "errors" object and collects every
// `_errors` message prefixed by the path of the offending field.
func flattenErrors(path string, v map[string]any, out []string) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch val := v[k].(type) {
		case []any:
			if k != "_errors" {
				continue
			}
			for _, item := range val {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				msg, _ := m["message"].(string)
				if path != "" {
					msg = path + ": " + msg
				}
				out = append(out, msg)
			}
		case map[string]any:
			next := k
			if path != "" {
				next = path + "." + k
			}
			out = flattenErrors(next, val, out)
		}
	}
	return out
}
