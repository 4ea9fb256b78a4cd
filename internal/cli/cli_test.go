package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/config"
	"github.com/khanglvm/persona-mcp/internal/storage"
)

type testEnv struct {
	configPath string
	personaDir string
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, k := range []string{"PORT", "PERSONA_API_KEY", "PERSONA_DIR", "PERSONA_LOG_LEVEL", "PERSONA_HISTORY"} {
		t.Setenv(k, "")
	}

	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Paths.PersonaDir = filepath.Join(root, "personas")
	cfg.Paths.CommunityDir = filepath.Join(root, "community")
	cfg.Logging.Level = "error"

	env := &testEnv{
		configPath: filepath.Join(root, "config.json"),
		personaDir: cfg.Paths.PersonaDir,
		cfg:        cfg,
	}
	require.NoError(t, config.Save(cfg, env.configPath))
	return env
}

// run executes the command tree and returns its output.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "http", "list", "create", "delete", "suggest", "analytics", "history", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestCreateListDelete(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "list")
	assert.Contains(t, out, "No saved personas.")

	out = env.mustRun(t, "create", "teacher", "--content", "You explain concepts step by step.")
	assert.Contains(t, out, "✓ Saved persona 'teacher'")
	assert.FileExists(t, filepath.Join(env.personaDir, "teacher.txt"))

	_, err := env.run(t, "", "create", "teacher", "--content", "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	env.mustRun(t, "create", "teacher", "--content", "Replaced.", "--force")
	data, err := os.ReadFile(filepath.Join(env.personaDir, "teacher.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Replaced.", string(data))

	out, err = env.run(t, "You write code.", "create", "coder")
	require.NoError(t, err, out)

	out = env.mustRun(t, "list")
	assert.Contains(t, out, "Personas (2):")
	assert.Contains(t, out, "  coder\n")

	out = env.mustRun(t, "list", "--json")
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"coder", "teacher"}, names)

	env.mustRun(t, "delete", "coder")
	_, err = env.run(t, "", "delete", "coder")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateRejectsInvalidName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "create", "../escape", "--content", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid name")
}

func TestListCommunity(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.cfg.Paths.CommunityDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.Paths.CommunityDir, "architect.txt"),
		[]byte("# Category: Development\n# Description: Designs systems\nYou design systems.\n"), 0644))

	out := env.mustRun(t, "list", "--community")
	assert.Contains(t, out, "architect [Development]")
	assert.Contains(t, out, "Designs systems")

	out = env.mustRun(t, "list", "--community", "--category", "marketing")
	assert.Contains(t, out, "No community personas found.")
}

func TestSuggest(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "create", "teacher", "--content", "You teach.")
	env.mustRun(t, "create", "coder", "--content", "You code.")

	out := env.mustRun(t, "suggest", "please", "explain", "how", "recursion", "works")
	assert.Contains(t, out, "Recommended: teacher")
	assert.Contains(t, out, "Confidence:  60%")
	assert.Contains(t, out, "Reason:      Context matches teacher pattern")

	out = env.mustRun(t, "suggest", "hello there")
	assert.Contains(t, out, "No suitable persona found")

	out = env.mustRun(t, "suggest", "--all", "--json", "explain how to fix this bug")
	var result suggestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Suggestion)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, result.Suggestion.Persona, result.Candidates[0].Persona)
}

func TestSuggestActivateTracksUsage(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "create", "teacher", "--content", "You teach.")

	out := env.mustRun(t, "suggest", "--activate", "explain recursion with examples")
	assert.Contains(t, out, "Activation recorded.")

	rec := analytics.NewStore(filepath.Join(env.personaDir, ".analytics.json"), analytics.Options{}).Load()
	assert.Equal(t, 1, rec.Usage["teacher"])
	assert.True(t, rec.HasKeyword("teacher", "recursion"))

	out = env.mustRun(t, "history", "recent")
	assert.Contains(t, out, "teacher")
	assert.Contains(t, out, storage.SourceCLI)

	out = env.mustRun(t, "history", "recent", "--suggestions", "--json")
	var recs []storage.SuggestionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "teacher", recs[0].Persona)

	out = env.mustRun(t, "history", "trending")
	assert.Contains(t, out, "1. teacher")

	out = env.mustRun(t, "history", "cleanup")
	assert.Contains(t, out, "older than 90 day(s)")
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PERSONA_HISTORY", "false")

	_, err := env.run(t, "", "history", "recent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
	assert.NoFileExists(t, filepath.Join(env.personaDir, "history.db"))
}

func TestAnalyticsCommands(t *testing.T) {
	env := newTestEnv(t)
	analyticsPath := filepath.Join(env.personaDir, ".analytics.json")
	require.NoError(t, os.MkdirAll(env.personaDir, 0755))
	require.NoError(t, os.WriteFile(analyticsPath, []byte(`{
  "usage": {"teacher": 3, "coder": 1},
  "contextPatterns": {"teacher": {"explain": 3, "recursion": 1, "loops": 2}}
}`), 0644))

	out := env.mustRun(t, "analytics", "show")
	assert.True(t, strings.HasPrefix(out, "Persona Usage Analytics\n\nUsage counts:\n"), out)
	assert.Contains(t, out, "teacher")

	out = env.mustRun(t, "analytics", "show", "--json", "--top", "1")
	var report analytics.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []analytics.UsageCount{{Persona: "teacher", Count: 3}, {Persona: "coder", Count: 1}}, report.Usage)
	require.Len(t, report.Patterns, 1)
	assert.Equal(t, []string{"explain"}, report.Patterns[0].Keywords)

	exportPath := filepath.Join(t.TempDir(), "export.json")
	env.mustRun(t, "analytics", "export", "-o", exportPath)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	exported, err := analytics.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, exported.Usage["teacher"])

	out = env.mustRun(t, "analytics", "prune", "--keep", "2")
	assert.Contains(t, out, "Removed 1 keyword(s)")
	rec := analytics.NewStore(analyticsPath, analytics.Options{}).Load()
	assert.Len(t, rec.ContextPatterns["teacher"], 2)
	assert.False(t, rec.HasKeyword("teacher", "recursion"))

	_, err = env.run(t, "", "analytics", "prune", "--keep", "0")
	require.Error(t, err)

	out, err = env.run(t, "n\n", "analytics", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.FileExists(t, analyticsPath)

	out, err = env.run(t, "y\n", "analytics", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Analytics data cleared")
	assert.NoFileExists(t, analyticsPath)
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "version")
	assert.Contains(t, out, "Version:  dev")
	assert.Contains(t, out, "Commit:")
}

func TestRulesFileFromConfig(t *testing.T) {
	env := newTestEnv(t)
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("rules:\n  - persona: reviewer\n    weight: 5\n    keywords: [diff]\n"), 0644))

	env.cfg.Suggestion.RulesFile = rulesPath
	require.NoError(t, config.Save(env.cfg, env.configPath))

	env.mustRun(t, "create", "reviewer", "--content", "You review diffs.")
	out := env.mustRun(t, "suggest", "look at this diff")
	assert.Contains(t, out, "Recommended: reviewer")
	assert.Contains(t, out, "Confidence:  50%")
}

func TestSuggestAllActivateScoresOnce(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "create", "coder", "--content", "You code.")

	for i, wantScore := range []float64{3, 3.5} {
		out := env.mustRun(t, "suggest", "--all", "--activate", "--json", "bug report")
		var result suggestOutput
		require.NoError(t, json.Unmarshal([]byte(out), &result), out)
		require.NotNil(t, result.Suggestion, "run %d", i)
		require.Len(t, result.Candidates, 1, "run %d", i)

		top := result.Candidates[0]
		assert.Equal(t, "coder", top.Persona)
		assert.InDelta(t, wantScore, top.Score, 1e-9, "run %d", i)
		assert.InDelta(t, result.Suggestion.Confidence, top.Confidence, 1e-9, "run %d", i)
	}
}
