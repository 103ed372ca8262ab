package observability

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Client describes the remote end of an HTTP or websocket request.
type Client struct {
	IP        string
	DeviceID  string
	RequestID string
	UserAgent string
}

// ClientFromRequest extracts client details. A request id is generated when
// the caller did not send one.
func ClientFromRequest(r *http.Request) Client {
	requestID := RequestIDFromRequest(r)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Client{
		IP:        IPFromRequest(r),
		DeviceID:  r.Header.Get("X-Device-Id"),
		RequestID: requestID,
		UserAgent: r.UserAgent(),
	}
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
