package backend

import (
	"net/url"
	"strings"

	"github.com/carebridge/telemed-sync/internal/appointments"
)

// CandidateEndpoint describes one way of addressing "update status for
// appointment X": an HTTP verb plus either a path template containing
// {id} or a query parameter carrying the identifier.
//
// The canonical contract is PATCH /appointments/{id}; the remaining shapes
// exist only as a resilience fallback against backends that drift from it.
// A production backend should expose exactly one shape.
type CandidateEndpoint struct {
	Method       string `json:"method"`
	PathTemplate string `json:"pathTemplate"`
	// IDParam, when set, names the query parameter the identifier is sent
	// in instead of a path segment.
	IDParam string `json:"idParam,omitempty"`
}

func (ep CandidateEndpoint) buildURL(base, id string) string {
	path := strings.ReplaceAll(ep.PathTemplate, "{id}", url.PathEscape(id))
	full := base + path
	if ep.IDParam != "" {
		q := url.Values{}
		q.Set(ep.IDParam, id)
		full += "?" + q.Encode()
	}
	return full
}

func (ep CandidateEndpoint) payload(id string, status appointments.Status) map[string]string {
	body := map[string]string{"status": string(status)}
	if ep.IDParam != "" {
		// Query-form backends have been seen expecting the id in the body
		// as well; sending both is harmless.
		body["id"] = id
	}
	return body
}

// DefaultCandidates is the ordered scan list. The canonical shape comes
// first so a conforming backend resolves on the first attempt.
func DefaultCandidates() []CandidateEndpoint {
	return []CandidateEndpoint{
		{Method: "PATCH", PathTemplate: "/appointments/{id}"},
		{Method: "PUT", PathTemplate: "/appointments/{id}"},
		{Method: "PATCH", PathTemplate: "/appointments/{id}/status"},
		{Method: "PUT", PathTemplate: "/appointments/{id}/status"},
		{Method: "POST", PathTemplate: "/appointments/{id}/status"},
		{Method: "PATCH", PathTemplate: "/api/appointments/{id}"},
		{Method: "PUT", PathTemplate: "/api/appointments/{id}"},
		{Method: "POST", PathTemplate: "/appointments/{id}/update"},
		{Method: "PATCH", PathTemplate: "/appointments", IDParam: "id"},
		{Method: "POST", PathTemplate: "/appointments/update-status", IDParam: "id"},
	}
}
