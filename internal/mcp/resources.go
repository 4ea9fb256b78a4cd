package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/learning"
	"github.com/khanglvm/persona-mcp/internal/persona"
	"github.com/khanglvm/persona-mcp/internal/storage"
)

const (
	uriScheme           = "persona://"
	knowledgeBaseSuffix = "/knowledge-base"
)

// Resource describes one readable persona resource.
type Resource struct {
	URI         string `json:"uri"`
	MimeType    string `json:"mimeType"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ResourceContent is the body of a read resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

func (s *Server) resources() ([]Resource, error) {
	names, err := s.personas.Names()
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(names))
	for _, name := range names {
		resources = append(resources, Resource{
			URI:         uriScheme + name,
			MimeType:    "text/plain",
			Name:        "Persona: " + name,
			Description: name + " persona profile",
		})
	}

	if s.knowledge != nil {
		ids, err := s.knowledge.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			resources = append(resources, Resource{
				URI:         uriScheme + id + knowledgeBaseSuffix,
				MimeType:    "text/markdown",
				Name:        id + " Knowledge Base",
				Description: id + " knowledge base (detailed documents, code examples, best practices)",
			})
		}
	}

	return resources, nil
}

func (s *Server) handleResourcesList(req *MCPRequest) *MCPResponse {
	resources, err := s.resources()
	if err != nil {
		return errorResponse(req.ID, codeInternalError, err.Error())
	}
	return resultResponse(req.ID, map[string]interface{}{"resources": resources})
}

// handleResourcesRead returns a persona or knowledge base and records the
// read as an activation.
func (s *Server) handleResourcesRead(req *MCPRequest) *MCPResponse {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	content, err := s.readResource(params.URI)
	if err != nil {
		code := codeInternalError
		var ve *persona.ValidationError
		var se *analytics.StorageError
		switch {
		case errors.As(err, &se):
			code = codeInternalError
		case errors.Is(err, errInvalidURI), errors.As(err, &ve):
			code = codeInvalidParams
		case errors.Is(err, persona.ErrNotFound):
			code = codeNotFound
		}
		return errorResponse(req.ID, code, err.Error())
	}

	return resultResponse(req.ID, map[string]interface{}{
		"contents": []ResourceContent{content},
	})
}

var errInvalidURI = errors.New("invalid persona URI")

func (s *Server) readResource(uri string) (ResourceContent, error) {
	if !strings.HasPrefix(uri, uriScheme) || len(uri) == len(uriScheme) {
		return ResourceContent{}, fmt.Errorf("%w: %q", errInvalidURI, uri)
	}
	target := strings.TrimPrefix(uri, uriScheme)

	if id, ok := strings.CutSuffix(target, knowledgeBaseSuffix); ok && id != "" {
		if s.knowledge == nil {
			return ResourceContent{}, fmt.Errorf("knowledge base %q %w", id, persona.ErrNotFound)
		}
		text, err := s.knowledge.Read(id)
		if err != nil {
			return ResourceContent{}, err
		}
		if err := s.activate(id, storage.SourceKnowledgeBase); err != nil {
			return ResourceContent{}, err
		}
		return ResourceContent{URI: uri, MimeType: "text/markdown", Text: text}, nil
	}

	text, err := s.personas.Read(target)
	if err != nil {
		return ResourceContent{}, err
	}
	if err := s.activate(target, storage.SourceResource); err != nil {
		return ResourceContent{}, err
	}
	return ResourceContent{URI: uri, MimeType: "text/plain", Text: text}, nil
}

// activate tracks a resource read. A read whose usage cannot be recorded
// fails as a whole.
func (s *Server) activate(name, source string) error {
	if s.tracker == nil {
		return nil
	}
	if err := s.tracker.Track(learning.NewActivationEvent(name, "", source)); err != nil {
		s.logger.Warn("failed to track persona usage", zap.String("persona", name), zap.Error(err))
		return fmt.Errorf("failed to record usage of %q: %w", name, err)
	}
	return nil
}
