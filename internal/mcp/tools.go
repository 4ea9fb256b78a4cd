package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/learning"
	"github.com/khanglvm/persona-mcp/internal/persona"
	"github.com/khanglvm/persona-mcp/internal/search"
	"github.com/khanglvm/persona-mcp/internal/storage"
	"github.com/khanglvm/persona-mcp/internal/suggest"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 20
	installPreviewLines  = 10
	chainSeparatorWidth  = 50
)

// errInvalidInput marks argument validation failures.
var errInvalidInput = errors.New("invalid input")

type toolHandler func(args json.RawMessage) (string, error)

func (s *Server) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"create_persona":            s.execCreatePersona,
		"update_persona":            s.execUpdatePersona,
		"delete_persona":            s.execDeletePersona,
		"list_personas":             s.execListPersonas,
		"suggest_persona":           s.execSuggestPersona,
		"chain_personas":            s.execChainPersonas,
		"get_analytics":             s.execGetAnalytics,
		"browse_community":          s.execBrowseCommunity,
		"install_community_persona": s.execInstallCommunityPersona,
		"search_persona_knowledge":  s.execSearchKnowledge,
		"search_by_persona":         s.execSearchByPersona,
		"get_persona_stats":         s.execPersonaStats,
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// toolDefinitions lists the tools in the order they are advertised.
func toolDefinitions() []map[string]interface{} {
	nResults := map[string]interface{}{
		"type":        "integer",
		"description": "Number of results to return (default 5, max 20)",
		"default":     defaultSearchResults,
	}

	return []map[string]interface{}{
		{
			"name":        "create_persona",
			"description": "Create a new persona profile",
			"inputSchema": objectSchema(map[string]interface{}{
				"name":    stringProp("Persona name (e.g. default, professional, casual)"),
				"content": stringProp("Persona prompt content"),
			}, "name", "content"),
		},
		{
			"name":        "update_persona",
			"description": "Replace the content of an existing persona profile",
			"inputSchema": objectSchema(map[string]interface{}{
				"name":    stringProp("Persona name to update"),
				"content": stringProp("New persona prompt content"),
			}, "name", "content"),
		},
		{
			"name":        "delete_persona",
			"description": "Delete a persona profile",
			"inputSchema": objectSchema(map[string]interface{}{
				"name": stringProp("Persona name to delete"),
			}, "name"),
		},
		{
			"name":        "list_personas",
			"description": "List all available personas",
			"inputSchema": objectSchema(map[string]interface{}{}),
		},
		{
			"name":        "suggest_persona",
			"description": "Analyze a conversation context and suggest a suitable persona. Suggesting does not activate the persona.",
			"inputSchema": objectSchema(map[string]interface{}{
				"context": stringProp("Conversation context or question to analyze"),
			}, "context"),
		},
		{
			"name":        "chain_personas",
			"description": "Run several personas in sequence for step-by-step processing",
			"inputSchema": objectSchema(map[string]interface{}{
				"personas": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Persona names to run in order",
				},
				"initialInput": stringProp("Input passed to the first persona"),
			}, "personas", "initialInput"),
		},
		{
			"name":        "get_analytics",
			"description": "Show persona usage statistics (local data only)",
			"inputSchema": objectSchema(map[string]interface{}{}),
		},
		{
			"name":        "browse_community",
			"description": "Browse the community persona collection",
			"inputSchema": objectSchema(map[string]interface{}{
				"category": stringProp("Optional category filter: Programming, Creative, Business, Education, Design, ..."),
			}),
		},
		{
			"name":        "install_community_persona",
			"description": "Install a community persona into the local collection",
			"inputSchema": objectSchema(map[string]interface{}{
				"name": stringProp("Community persona name to install"),
			}, "name"),
		},
		{
			"name":        "search_persona_knowledge",
			"description": "Keyword search across all persona profiles and knowledge bases",
			"inputSchema": objectSchema(map[string]interface{}{
				"query":     stringProp("Search query (e.g. 'how to fine-tune an LLM', 'FastAPI authentication')"),
				"n_results": nResults,
			}, "query"),
		},
		{
			"name":        "search_by_persona",
			"description": "Keyword search within one persona's knowledge base",
			"inputSchema": objectSchema(map[string]interface{}{
				"query":      stringProp("Search query"),
				"persona_id": stringProp("Persona id (e.g. '410-llm-engineer')"),
				"n_results":  nResults,
			}, "query", "persona_id"),
		},
		{
			"name":        "get_persona_stats",
			"description": "Show search index and activation statistics",
			"inputSchema": objectSchema(map[string]interface{}{}),
		},
	}
}

// handleToolsList returns the list of available tools.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return resultResponse(req.ID, map[string]interface{}{
		"tools": toolDefinitions(),
	})
}

// handleToolsCall handles tool execution requests. Tool failures are reported
// as results with isError set; only malformed calls get a JSON-RPC error.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	handler, ok := s.toolHandlers()[params.Name]
	if !ok {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	text, err := handler(params.Arguments)
	if err != nil {
		s.logger.Debug("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return resultResponse(req.ID, toolResult(errorText(err), true))
	}
	return resultResponse(req.ID, toolResult(text, false))
}

func toolResult(text string, isError bool) map[string]interface{} {
	result := map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
	if isError {
		result["isError"] = true
	}
	return result
}

func errorText(err error) string {
	if errors.Is(err, errInvalidInput) {
		return "Input validation failed: " + strings.TrimPrefix(err.Error(), errInvalidInput.Error()+": ")
	}
	return "Error: " + err.Error()
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as an empty object.
func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return nil
}

func required(field string, value *string) error {
	if value == nil {
		return fmt.Errorf("%w: %s is required", errInvalidInput, field)
	}
	return nil
}

type personaArgs struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

func (s *Server) savePersonaArgs(args json.RawMessage) (string, string, error) {
	var a personaArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", "", err
	}
	if err := required("name", a.Name); err != nil {
		return "", "", err
	}
	if err := required("content", a.Content); err != nil {
		return "", "", err
	}
	path, err := s.personas.Save(*a.Name, *a.Content)
	if err != nil {
		return "", "", asInputError(err)
	}
	return *a.Name, path, nil
}

// asInputError reports persona validation failures as input errors.
func asInputError(err error) error {
	var ve *persona.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", errInvalidInput, ve)
	}
	return err
}

func (s *Server) execCreatePersona(args json.RawMessage) (string, error) {
	name, path, err := s.savePersonaArgs(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Persona %q created.\nLocation: %s", name, path), nil
}

func (s *Server) execUpdatePersona(args json.RawMessage) (string, error) {
	name, _, err := s.savePersonaArgs(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Persona %q updated.", name), nil
}

func (s *Server) execDeletePersona(args json.RawMessage) (string, error) {
	var a personaArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := required("name", a.Name); err != nil {
		return "", err
	}
	if err := s.personas.Delete(*a.Name); err != nil {
		return "", asInputError(err)
	}
	return fmt.Sprintf("Persona %q deleted.", *a.Name), nil
}

func (s *Server) execListPersonas(json.RawMessage) (string, error) {
	names, err := s.personas.Names()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "No saved personas.", nil
	}

	var b strings.Builder
	b.WriteString("Available personas:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	fmt.Fprintf(&b, "\nUsage: reference a persona as @persona:%s", names[0])
	return b.String(), nil
}

func (s *Server) execSuggestPersona(args json.RawMessage) (string, error) {
	var a struct {
		Context *string `json:"context"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := required("context", a.Context); err != nil {
		return "", err
	}

	names, err := s.personas.Names()
	if err != nil {
		return "", err
	}

	suggestion := s.engine.Suggest(*a.Context, names)
	s.recordSuggestion(*a.Context, suggestion)

	if suggestion == nil {
		return "💡 No suitable persona found for this context.\nUse the list_personas tool to see the available personas.", nil
	}

	return fmt.Sprintf("💡 Persona suggestion\n\nRecommended: @persona:%s\nConfidence: %d%%\nReason: %s\n\nReference the @persona:%s resource to use this persona.",
		suggestion.Persona, percent(suggestion.Confidence), suggestion.Reason, suggestion.Persona), nil
}

func percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

// recordSuggestion writes the outcome to the history database. Failures are
// logged only; a suggestion is never an activation.
func (s *Server) recordSuggestion(context string, suggestion *suggest.Suggestion) {
	if s.history == nil {
		return
	}
	rec := storage.SuggestionRecord{
		ContextHash: storage.HashContext(context),
		Timestamp:   time.Now(),
	}
	if suggestion != nil {
		rec.Persona = suggestion.Persona
		rec.Confidence = suggestion.Confidence
	}
	if err := s.history.RecordSuggestion(rec); err != nil {
		s.logger.Warn("failed to record suggestion", zap.Error(err))
	}
}

type chainStep struct {
	persona string
	prompt  string
	input   string
	err     error
}

func (s *Server) execChainPersonas(args json.RawMessage) (string, error) {
	var a struct {
		Personas     []string `json:"personas"`
		InitialInput *string  `json:"initialInput"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if len(a.Personas) == 0 {
		return "", fmt.Errorf("%w: personas must name at least one persona", errInvalidInput)
	}
	if err := required("initialInput", a.InitialInput); err != nil {
		return "", err
	}

	var steps []chainStep
	input := *a.InitialInput
	for _, name := range a.Personas {
		prompt, err := s.personas.Read(name)
		if err == nil {
			err = s.tracker.Track(learning.NewActivationEvent(name, input, storage.SourceChain))
		}
		if err != nil {
			steps = append(steps, chainStep{persona: name, err: err})
			break
		}
		steps = append(steps, chainStep{persona: name, prompt: prompt, input: input})
		input = fmt.Sprintf("[Previous output from %s will be used as input here]", name)
	}

	parts := make([]string, len(steps))
	completed := 0
	for i, step := range steps {
		if step.err != nil {
			parts[i] = fmt.Sprintf("Step %d - %s: ❌ %v", i+1, step.persona, step.err)
			continue
		}
		completed++
		parts[i] = fmt.Sprintf("Step %d - %s:\n\nPrompt:\n%s\n\nInput:\n%s\n", i+1, step.persona, step.prompt, step.input)
	}

	separator := "\n" + strings.Repeat("=", chainSeparatorWidth) + "\n\n"
	return fmt.Sprintf("🔗 Persona Chain Execution\n\n%s\n✅ Chain completed: %d/%d steps",
		strings.Join(parts, separator), completed, len(a.Personas)), nil
}

func (s *Server) execGetAnalytics(json.RawMessage) (string, error) {
	report := analytics.Summarize(s.analytics.Load(), analytics.DefaultTopKeywords)
	return "📊 " + report.Text(), nil
}

func (s *Server) execBrowseCommunity(args json.RawMessage) (string, error) {
	var a struct {
		Category string `json:"category"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}

	var all []persona.CommunityPersona
	if s.community != nil {
		list, err := s.community.List()
		if err != nil {
			return "", err
		}
		all = list
	}
	if len(all) == 0 {
		return "📦 No community personas yet.\n\nSee CONTRIBUTING.md to become the first contributor!", nil
	}

	filtered := persona.FilterByCategory(all, a.Category)

	// group in first-seen order
	var categories []string
	byCategory := make(map[string][]persona.CommunityPersona)
	for _, p := range filtered {
		c := p.Category()
		if _, ok := byCategory[c]; !ok {
			categories = append(categories, c)
		}
		byCategory[c] = append(byCategory[c], p)
	}

	var b strings.Builder
	b.WriteString("🌟 Community Persona Collection\n\n")
	fmt.Fprintf(&b, "Found %d persona(s)", len(filtered))
	if a.Category != "" {
		fmt.Fprintf(&b, " in category %q", a.Category)
	}
	b.WriteString("\n\n")

	for _, c := range categories {
		fmt.Fprintf(&b, "## %s\n\n", c)
		for _, p := range byCategory[c] {
			fmt.Fprintf(&b, "### %s\n", p.Name)
			if v := p.Metadata["author"]; v != "" {
				fmt.Fprintf(&b, "👤 Author: %s\n", v)
			}
			if v := p.Metadata["difficulty"]; v != "" {
				fmt.Fprintf(&b, "📊 Difficulty: %s\n", v)
			}
			if v := p.Metadata["persona"]; v != "" {
				fmt.Fprintf(&b, "📝 Description: %s\n", v)
			}
			if v := p.Metadata["use"]; v != "" {
				fmt.Fprintf(&b, "💡 Use Cases: %s\n", v)
			}
			fmt.Fprintf(&b, "\n📥 Install: `install_community_persona` with name %q\n\n", p.Name)
		}
	}

	b.WriteString("\n---\n\n")
	b.WriteString("💡 **Tip**: After installing, use @persona:name to activate")
	return b.String(), nil
}

func (s *Server) execInstallCommunityPersona(args json.RawMessage) (string, error) {
	var a personaArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := required("name", a.Name); err != nil {
		return "", err
	}
	if s.community == nil {
		return "", errors.New("no community directory is configured")
	}

	name := *a.Name
	path, err := s.community.Install(name, s.personas)
	if err != nil {
		return "", asInputError(err)
	}
	content, err := s.community.Read(name)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	if len(lines) > installPreviewLines {
		lines = lines[:installPreviewLines]
	}

	return fmt.Sprintf("✅ Persona %q installed successfully!\n\n📁 Location: %s\n\n📄 Preview:\n%s\n...\n\n💡 **How to use:**\n@persona:%s your question or task",
		name, path, strings.Join(lines, "\n"), name), nil
}

type searchArgs struct {
	Query     *string `json:"query"`
	PersonaID *string `json:"persona_id"`
	NResults  int     `json:"n_results"`
}

func (a searchArgs) limit() int {
	switch {
	case a.NResults <= 0:
		return defaultSearchResults
	case a.NResults > maxSearchResults:
		return maxSearchResults
	}
	return a.NResults
}

func (s *Server) searchIndex() (*search.Indexer, error) {
	if s.index == nil {
		return nil, errors.New("knowledge search is not available")
	}
	return s.index, nil
}

func (s *Server) execSearchKnowledge(args json.RawMessage) (string, error) {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := required("query", a.Query); err != nil {
		return "", err
	}
	index, err := s.searchIndex()
	if err != nil {
		return "", err
	}

	results, err := index.Search(*a.Query, a.limit())
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'.", *a.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## 🔍 Search results for '%s'\n\n", *a.Query)
	for i, r := range results {
		fmt.Fprintf(&b, "### [%d] %s (%s)\n", i+1, search.DisplayName(r.PersonaID), r.PersonaID)
		writeHit(&b, r)
	}
	return b.String(), nil
}

func (s *Server) execSearchByPersona(args json.RawMessage) (string, error) {
	var a searchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if err := required("query", a.Query); err != nil {
		return "", err
	}
	if err := required("persona_id", a.PersonaID); err != nil {
		return "", err
	}
	index, err := s.searchIndex()
	if err != nil {
		return "", err
	}

	results, err := index.SearchByPersona(*a.Query, *a.PersonaID, a.limit())
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s' in '%s'.\n\nUse the list_personas tool to see the available personas.", *a.Query, *a.PersonaID), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## 🎯 [%s] Search results for '%s'\n\n", search.DisplayName(*a.PersonaID), *a.Query)
	for i, r := range results {
		fmt.Fprintf(&b, "### [%d]\n", i+1)
		writeHit(&b, r)
	}
	return b.String(), nil
}

func writeHit(b *strings.Builder, r search.Result) {
	if r.Section != "" && r.Kind == search.KindKnowledge {
		fmt.Fprintf(b, "**Section**: %s\n", r.Section)
	}
	fmt.Fprintf(b, "**Relevance**: %.3f\n\n%s\n\n", r.Score, r.Content)
}

func (s *Server) execPersonaStats(json.RawMessage) (string, error) {
	names, err := s.personas.Names()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## 📊 Persona Stats\n\n")
	fmt.Fprintf(&b, "- **Local personas**: %d\n", len(names))

	if s.knowledge != nil {
		ids, err := s.knowledge.IDs()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- **Knowledge bases**: %d\n", len(ids))
	}

	if s.index != nil {
		count, err := s.index.Count()
		if err != nil {
			return "", err
		}
		ids, err := s.index.PersonaIDs()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- **Indexed chunks**: %d\n", count)
		fmt.Fprintf(&b, "- **Indexed personas**: %d\n", len(ids))
	}

	if s.tracker != nil {
		recording := "off"
		if s.tracker.IsEnabled() {
			recording = "on"
		}
		fmt.Fprintf(&b, "- **History recording**: %s\n", recording)
	}

	if s.history != nil {
		counts, err := s.history.ActivationCounts(time.Time{})
		if err != nil {
			s.logger.Warn("failed to count activations", zap.Error(err))
		} else {
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Fprintf(&b, "- **Recorded activations**: %d across %d persona(s)\n", total, len(counts))
		}

		trending, err := learning.RankTrending(s.history, learning.DefaultTrendingWindow)
		if err != nil {
			s.logger.Warn("failed to rank trending personas", zap.Error(err))
		} else if len(trending) > 0 {
			b.WriteString("\n### Trending (last 7 days)\n")
			for i, p := range trending {
				fmt.Fprintf(&b, "%d. %s: score %.2f (%d activations)\n", i+1, p.Persona, p.Score, p.Activations)
			}
		}
	}

	return b.String(), nil
}
