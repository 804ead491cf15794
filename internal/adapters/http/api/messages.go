package api

import (
	"net/http"
)

// MessageDependencies defines the interface for UI catalog lookups.
type MessageDependencies interface {
	Messages(prefs ...string) map[string]string
	MaxArea() float64
}

// MessagesHandler serves the localized UI message catalog.
type MessagesHandler struct {
	deps MessageDependencies
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(deps MessageDependencies) *MessagesHandler {
	return &MessagesHandler{deps: deps}
}

// messagesResponse bundles the catalog with client-side limits.
type messagesResponse struct {
	Messages  map[string]string `json:"messages"`
	MaxAreaM2 float64           `json:"max_area_m2"`
}

// HandleGetMessages handles GET /messages?lang=de requests. The lang
// query parameter wins over the Accept-Language header.
func (h *MessagesHandler) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{
		Messages:  h.deps.Messages(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language")),
		MaxAreaM2: h.deps.MaxArea(),
	})
}
