// Command execution for CLI commands.
//
// Information Hiding:
// - Engine wiring (storage, knowledge, catalog, providers) hidden
// - Session persistence hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/richinex/concierge/answer"
	"github.com/richinex/concierge/catalog"
	"github.com/richinex/concierge/clientctx"
	"github.com/richinex/concierge/config"
	"github.com/richinex/concierge/convo"
	"github.com/richinex/concierge/gateway"
	"github.com/richinex/concierge/knowledge"
	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
	"github.com/richinex/concierge/storage"
)

// Options holds CLI execution options. Empty fields fall back to settings.
type Options struct {
	Provider string
	Identity string
	Language string
	DBPath   string
	Session  string
	Polish   bool
	Verbose  bool
}

// Engine is a fully wired answering engine over one database.
type Engine struct {
	Settings     config.Settings
	Logger       zerolog.Logger
	Storage      *storage.SqliteStorage
	Sessions     storage.ConversationStorage
	Knowledge    *knowledge.Store
	Catalog      *catalog.Catalog
	Gateway      *gateway.Gateway
	Orchestrator *answer.Orchestrator
}

// NewLogger builds the root logger. Verbose forces debug level.
func NewLogger(cfg config.LogConfig, verbose bool, w io.Writer) zerolog.Logger {
	level := cfg.Level
	if verbose {
		level = zerolog.DebugLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Open loads settings and wires an Engine. Callers must Close it.
func Open(opts Options) (*Engine, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		settings.Storage.DBPath = opts.DBPath
	}
	if opts.Polish {
		settings.Engine.Polish = true
	}

	logger := NewLogger(settings.Log, opts.Verbose, os.Stderr)
	store, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewEngine(settings, store, createProviders(settings.LLM, logger), logger), nil
}

// NewEngine wires an Engine from already constructed parts.
func NewEngine(settings config.Settings, store *storage.SqliteStorage, providers []llm.Provider, logger zerolog.Logger) *Engine {
	kb := knowledge.NewStore(store, logger, knowledge.WithMinCoverage(settings.Engine.MinCoverage))
	demos := catalog.New(store, logger)
	builder := clientctx.NewBuilder(catalog.NewEntitlements(demos, store, store))
	gw := gateway.New(settings.LLM.Timeout, providers...)

	orchestrator := answer.NewOrchestrator(answer.Config{
		Knowledge: kb,
		Context:   builder,
		Gateway:   gw,
		Manager: convo.NewManager(
			convo.WithMaxTurns(settings.Engine.MaxTurns),
			convo.WithTurnChars(settings.Engine.TurnChars),
		),
		Logger:                logger,
		DefaultLanguage:       settings.Engine.Language,
		SearchLimit:           settings.Engine.SearchLimit,
		HighConfidenceMatches: settings.Engine.HighConfidenceMatches,
		ExcerptChars:          settings.Engine.ExcerptChars,
		Polish:                settings.Engine.Polish,
	})

	return &Engine{
		Settings:     settings,
		Logger:       logger,
		Storage:      store,
		Sessions:     store,
		Knowledge:    kb,
		Catalog:      demos,
		Gateway:      gw,
		Orchestrator: orchestrator,
	}
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.Storage.Close()
}

// createProviders builds every configured provider. A provider that fails
// to build is logged and left out of the chain.
func createProviders(cfg config.LLMConfig, logger zerolog.Logger) []llm.Provider {
	var providers []llm.Provider
	for _, pc := range cfg.Providers {
		p, err := llm.NewProviderBuilder(pc.Type).
			Model(pc.Model).
			MaxTokens(cfg.MaxTokens).
			Temperature(float32(cfg.Temperature)).
			APIKey(pc.APIKey)
		if err != nil {
			logger.Warn().Err(err).Str("provider", pc.Name()).Msg("skipping provider")
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

// query turns a message and options into an answer.Query.
func (e *Engine) query(message string, history []convo.Turn, opts Options) (answer.Query, error) {
	q := answer.Query{
		Identity:          opts.Identity,
		Message:           message,
		History:           history,
		PreferredProvider: opts.Provider,
	}
	if q.PreferredProvider == "" {
		q.PreferredProvider = e.Settings.LLM.Preferred
	}
	if opts.Language != "" {
		lang, err := locale.Parse(opts.Language)
		if err != nil {
			return answer.Query{}, err
		}
		q.Language = lang
	}
	return q, nil
}

// Ask answers a single question.
func Ask(ctx context.Context, question string, opts Options, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Ask(ctx, question, opts, out)
}

// Ask answers a single question and prints the result.
func (e *Engine) Ask(ctx context.Context, question string, opts Options, out io.Writer) error {
	q, err := e.query(question, nil, opts)
	if err != nil {
		return err
	}
	printResult(out, e.Orchestrator.Answer(ctx, q), opts.Verbose)
	return nil
}

// Chat starts an interactive chat session.
func Chat(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Chat(ctx, opts, in, out)
}

// Chat reads questions from in until EOF or "exit". With a session the
// history is loaded first and saved after every exchange.
func (e *Engine) Chat(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	var history []convo.Turn
	if opts.Session != "" {
		loaded, err := e.Sessions.Load(ctx, opts.Session)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		history = loaded
		if len(history) > 0 {
			fmt.Fprintf(out, "Resuming session '%s' (%d messages)\n\n", opts.Session, len(history))
		}
	}

	fmt.Fprintf(out, "Chat with the concierge. Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		q, err := e.query(input, history, opts)
		if err != nil {
			return err
		}
		result := e.Orchestrator.Answer(ctx, q)
		fmt.Fprintln(out)
		printResult(out, result, opts.Verbose)
		fmt.Fprintln(out)

		history = convo.Append(history, convo.UserTurn(input), convo.AssistantTurn(result.Reply))
		if opts.Session != "" {
			if err := e.Sessions.Save(ctx, opts.Session, history); err != nil {
				e.Logger.Warn().Err(err).Str("session", opts.Session).Msg("failed to save history")
			}
		}
	}

	return scanner.Err()
}

// Ingest loads every document below dir into the knowledge base.
func Ingest(ctx context.Context, dir string, opts Options, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Ingest(ctx, dir, out)
}

// Ingest replaces the stored chunks of every file below dir and rebuilds
// the index.
func (e *Engine) Ingest(ctx context.Context, dir string, out io.Writer) error {
	docs, err := knowledge.NewDirLoader(dir).LoadDocuments(ctx)
	if err != nil {
		return err
	}

	bySource := make(map[string][]knowledge.Document)
	for _, doc := range docs {
		bySource[doc.Source] = append(bySource[doc.Source], doc)
	}
	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	total := 0
	for _, source := range sources {
		added, err := e.Storage.ReplaceSource(ctx, source, bySource[source])
		if err != nil {
			return err
		}
		e.Logger.Debug().Str("source", source).Int("chunks", added).Msg("ingested")
		total += added
	}

	if err := e.Knowledge.Reload(ctx); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	fmt.Fprintf(out, "Ingested %d chunks from %d files (%d documents indexed)\n",
		total, len(sources), e.Knowledge.Len(ctx))
	return nil
}

// Demos lists the visible catalog.
func Demos(ctx context.Context, opts Options, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Demos(ctx, out)
}

// Demos prints the visible catalog.
func (e *Engine) Demos(ctx context.Context, out io.Writer) error {
	demos, err := e.Catalog.Demos(ctx)
	if err != nil {
		return err
	}
	for _, d := range demos {
		fmt.Fprintf(out, "  %-18s %s\n", d.ID, d.Name)
		if d.Description != "" {
			fmt.Fprintf(out, "  %-18s %s\n", "", d.Description)
		}
	}
	return nil
}

// Assign grants an identity access to a demo.
func Assign(ctx context.Context, identity, demoID string, opts Options, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Assign(ctx, identity, demoID, out)
}

// Assign grants identity access to a known demo.
func (e *Engine) Assign(ctx context.Context, identity, demoID string, out io.Writer) error {
	demo, ok, err := e.Catalog.Lookup(ctx, demoID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown demo: %q", demoID)
	}
	if err := e.Storage.Assign(ctx, identity, demo.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Assigned %s to %s\n", demo.Name, identity)
	return nil
}

// Unassign revokes an identity's access to a demo.
func Unassign(ctx context.Context, identity, demoID string, opts Options, out io.Writer) error {
	engine, err := Open(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.Unassign(ctx, identity, demoID, out)
}

// Unassign revokes identity's access to a demo.
func (e *Engine) Unassign(ctx context.Context, identity, demoID string, out io.Writer) error {
	if err := e.Storage.Unassign(ctx, identity, demoID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Unassigned %s from %s\n", demoID, identity)
	return nil
}

// printResult writes the reply followed by a one-line summary of where it
// came from.
func printResult(out io.Writer, r answer.Result, verbose bool) {
	fmt.Fprintf(out, "%s\n\n", r.Reply)

	switch {
	case r.Knowledge != nil:
		fmt.Fprintf(out, "(source: %s, confidence: %s, %d matches)\n",
			r.Source, r.Knowledge.Confidence, len(r.Knowledge.Snippets))
		if verbose {
			for _, m := range r.Knowledge.Snippets {
				fmt.Fprintf(out, "  %.2f  %s\n", m.Score, m.Source)
			}
		}
	case r.Provider != nil:
		line := fmt.Sprintf("(source: %s, model: %s", r.Source, r.Provider.Model)
		if u := r.Provider.Usage; u != nil {
			line += fmt.Sprintf(", tokens: %d in / %d out", u.PromptTokens, u.CompletionTokens)
		}
		if r.Provider.Polished {
			line += ", polished"
		}
		fmt.Fprintln(out, line+")")
	}
}
