package audit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the first forwarded address, X-Real-IP, or the remote host.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRequest fills the request-derived fields of an entry and encodes meta.
func WithRequest(entry Entry, r *http.Request, meta map[string]any) Entry {
	entry.IP = ClientIP(r)
	if r != nil {
		entry.UserAgent = r.UserAgent()
	}
	if meta != nil {
		if payload, err := json.Marshal(meta); err == nil {
			entry.Metadata = payload
		}
	}
	return entry
}
