package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/config"
	"github.com/khanglvm/persona-mcp/internal/learning"
	"github.com/khanglvm/persona-mcp/internal/logging"
	"github.com/khanglvm/persona-mcp/internal/mcp"
	"github.com/khanglvm/persona-mcp/internal/persona"
	"github.com/khanglvm/persona-mcp/internal/search"
	"github.com/khanglvm/persona-mcp/internal/storage"
	"github.com/khanglvm/persona-mcp/internal/suggest"
	"github.com/khanglvm/persona-mcp/internal/version"
)

// App holds the components shared by the commands, built from one resolved
// configuration.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Personas  *persona.Store
	Community *persona.Community
	Knowledge *persona.KnowledgeBase
	Analytics *analytics.Store
	Tracker   *learning.Tracker

	// History is nil when the history database is disabled.
	History storage.Storage
	Engine  *suggest.Engine

	history *storage.SQLiteStorage
}

// NewApp builds the components for cfg. Close must be called to flush the
// tracker and release the history database.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	opts := suggest.Options{
		ConfidenceDivisor:  cfg.Suggestion.ConfidenceDivisor,
		ActivationFloor:    cfg.Suggestion.ActivationFloor,
		MaxConfidence:      cfg.Suggestion.MaxConfidence,
		KeywordMinLength:   cfg.Suggestion.KeywordMinLength,
		TrackingKeywordCap: cfg.Suggestion.TrackingKeywordCap,
	}
	if cfg.Suggestion.RulesFile != "" {
		rules, err := suggest.LoadRulesFile(cfg.Suggestion.RulesFile)
		if err != nil {
			return nil, err
		}
		opts.Rules = rules
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Personas:  persona.NewStore(cfg.Paths.PersonaDir),
		Community: persona.NewCommunity(cfg.Paths.CommunityDir),
		Knowledge: persona.NewKnowledgeBase(cfg.Paths.KnowledgeBaseDir),
		Analytics: analytics.NewStore(cfg.Paths.AnalyticsFile, analytics.Options{
			KeywordHistoryCap: cfg.Suggestion.KeywordHistoryCap,
			Logger:            logger,
		}),
	}

	if err := app.Personas.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create persona directory: %w", err)
	}

	if cfg.History.Enabled {
		app.history = storage.NewStorage(cfg.Paths.HistoryDB, logger)
		app.History = app.history
	}

	app.Engine = suggest.NewEngine(app.Analytics, opts)
	app.Tracker = learning.NewTracker(app.Analytics, app.History, learning.TrackerOptions{
		KeywordMinLength: app.Engine.Options().KeywordMinLength,
		KeywordCap:       app.Engine.Options().TrackingKeywordCap,
		Logger:           logger,
	})

	return app, nil
}

// OpenHistory initializes the history database for direct use.
func (a *App) OpenHistory() (*storage.SQLiteStorage, error) {
	if a.history == nil {
		return nil, fmt.Errorf("activation history is disabled (history.enabled=false)")
	}
	if err := a.history.Init(); err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if !a.history.Enabled() {
		return nil, fmt.Errorf("history database %s is unavailable", a.history.Path())
	}
	return a.history, nil
}

// MCPServer creates an MCP server over the app's components. index may be nil.
func (a *App) MCPServer(index *search.Indexer) *mcp.Server {
	return mcp.NewServer(mcp.Options{
		Personas:  a.Personas,
		Community: a.Community,
		Knowledge: a.Knowledge,
		Analytics: a.Analytics,
		Tracker:   a.Tracker,
		Engine:    a.Engine,
		Index:     index,
		History:   a.History,
		Logger:    a.Logger,
		Version:   version.Version,
	})
}

// Close stops the tracker and closes the history database.
func (a *App) Close() error {
	a.Tracker.Stop()
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}
