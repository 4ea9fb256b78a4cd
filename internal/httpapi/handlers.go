package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxBodyBytes       = 1 << 20
	defaultNResults    = 5
	personaDetailQuery = "core competencies expertise skills"
	personaDetailLimit = 10
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	list := make(map[string]string, len(endpoints))
	for _, e := range endpoints {
		list[e.Route] = e.Description
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":      "persona-mcp HTTP API",
		"version":   s.opts.Version,
		"endpoints": list,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"mcp_initialized": s.fwd.Initialized(),
		"timestamp":       s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	routes := make([]string, len(endpoints))
	for i, e := range endpoints {
		routes[i] = e.Route
	}
	respondJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":               "Not found",
		"available_endpoints": routes,
	})
}

// callTool forwards a tool call, writing a 500 response on failure.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request, name string, args interface{}) (json.RawMessage, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	result, err := s.fwd.CallTool(ctx, name, args)
	if err != nil {
		s.metrics.toolErrors.WithLabelValues(name).Inc()
		s.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return nil, false
	}
	return result, true
}

// decodeBody reads a JSON request body, writing a 400 response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || json.Unmarshal(data, v) != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if result, ok := s.callTool(w, r, "list_personas", nil); ok {
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, ok := s.callTool(w, r, "search_by_persona", map[string]interface{}{
		"query":      personaDetailQuery,
		"persona_id": id,
		"n_results":  personaDetailLimit,
	})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"persona_id": id,
		"knowledge":  result,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string `json:"query"`
		PersonaID string `json:"persona_id"`
		NResults  int    `json:"n_results"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		respondError(w, http.StatusBadRequest, "Missing required field: query")
		return
	}
	if body.NResults <= 0 {
		body.NResults = defaultNResults
	}

	tool := "search_persona_knowledge"
	args := map[string]interface{}{"query": body.Query, "n_results": body.NResults}
	if body.PersonaID != "" {
		tool = "search_by_persona"
		args["persona_id"] = body.PersonaID
	}

	if result, ok := s.callTool(w, r, tool, args); ok {
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PersonaID string `json:"persona_id"`
		Question  string `json:"question"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.PersonaID == "" || strings.TrimSpace(body.Question) == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: persona_id, question")
		return
	}

	result, ok := s.callTool(w, r, "search_by_persona", map[string]interface{}{
		"query":      body.Question,
		"persona_id": body.PersonaID,
		"n_results":  defaultNResults,
	})
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"persona_id":  body.PersonaID,
		"question":    body.Question,
		"knowledge":   result,
		"instruction": "You are now " + body.PersonaID + ". Use the knowledge above to answer the question with expertise and authority.",
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Context *string `json:"context"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Context == nil {
		respondError(w, http.StatusBadRequest, "Missing required field: context")
		return
	}

	if result, ok := s.callTool(w, r, "suggest_persona", map[string]interface{}{"context": *body.Context}); ok {
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if result, ok := s.callTool(w, r, "get_persona_stats", nil); ok {
		respondJSON(w, http.StatusOK, result)
	}
}
