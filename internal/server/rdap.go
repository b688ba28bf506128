package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const contentTypeRDAP = "application/rdap+json"

// Link is an RDAP link object (RFC 9083 section 4.2).
type Link struct {
	Value string `json:"value"`
	Rel   string `json:"rel"`
	Type  string `json:"type"`
	Href  string `json:"href"`
}

// Notice is an RDAP notice or remark (RFC 9083 section 4.3).
type Notice struct {
	Title       string   `json:"title"`
	Description []string `json:"description"`
	Links       []Link   `json:"links,omitempty"`
}

// HelpResponse is the body of /help.
type HelpResponse struct {
	RDAPConformance []string `json:"rdapConformance"`
	Notices         []Notice `json:"notices"`
}

// ErrorResponse is an RDAP error body (RFC 9083 section 6).
type ErrorResponse struct {
	RDAPConformance []string `json:"rdapConformance"`
	Notices         []Notice `json:"notices"`
	ErrorCode       int      `json:"errorCode"`
	Title           string   `json:"title"`
	Description     []string `json:"description"`
}

var (
	helpConformance  = []string{"rdap_level_0"}
	errorConformance = []string{"rdap_level_0", "nro_rdap_profile_0"}
)

func newErrorResponse(status int, description string, notices []Notice) ErrorResponse {
	if notices == nil {
		notices = []Notice{}
	}
	return ErrorResponse{
		RDAPConformance: errorConformance,
		Notices:         notices,
		ErrorCode:       status,
		Title:           http.StatusText(status),
		Description:     []string{description},
	}
}

func writeRDAP(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeRDAP)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing rdap response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, description string, notices ...Notice) {
	writeRDAP(w, status, newErrorResponse(status, description, notices))
}
