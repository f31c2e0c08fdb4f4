package ws

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrorCategory classifies producer connection errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryNetwork indicates network failures (refused, reset, timeout, DNS)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryProtocol indicates websocket protocol failures (bad handshake, abnormal close codes)
	ErrCategoryProtocol
	// ErrCategoryClosedNormal indicates the producer closed the connection cleanly
	ErrCategoryClosedNormal
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// NumCategories is the number of ErrorCategory values.
const NumCategories = 4

// String returns a human-readable name of the category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryProtocol:
		return "protocol"
	case ErrCategoryClosedNormal:
		return "closed_normal"
	default:
		return "unknown"
	}
}

// Classify categorizes a connection error.
//
// Typed checks come first; message keywords are the fallback for errors that
// lost their type through wrapping by fmt.Errorf("%v").
func Classify(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrCategoryClosedNormal
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseAbnormalClosure {
			return ErrCategoryNetwork
		}
		return ErrCategoryProtocol
	}

	if errors.Is(err, websocket.ErrBadHandshake) {
		return ErrCategoryProtocol
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, protocolKeywords) {
		return ErrCategoryProtocol
	}
	if containsAny(msg, networkKeywords) {
		return ErrCategoryNetwork
	}
	return ErrCategoryUnknown
}

var protocolKeywords = []string{
	"bad handshake",
	"bad status",
	"malformed",
	"unexpected reserved bits",
	"invalid utf-8",
}

var networkKeywords = []string{
	"connection",
	"refused",
	"reset",
	"timeout",
	"broken pipe",
	"unreachable",
	"no such host",
	"eof",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
