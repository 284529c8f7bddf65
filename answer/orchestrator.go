// Package answer is the root of the answering engine. It decides between
// the knowledge base and external providers, runs the provider fallback
// chain and always returns a valid Result.
//
// Information Hiding:
// - Concurrent context gathering hidden
// - Provider attempt order and failure absorption hidden
// - Reply composition and localization hidden
//
// Flow for one query:
//
//	START -> CONTEXT_GATHERING -> KB_HIT                       -> reply from matches
//	                           -> KB_MISS -> PROVIDER_ATTEMPT(i) -> SUCCESS
//	                                      -> ...                 -> ALL_FAILED -> apology
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/concierge/clientctx"
	"github.com/richinex/concierge/convo"
	"github.com/richinex/concierge/gateway"
	"github.com/richinex/concierge/knowledge"
	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
)

const (
	DefaultSearchLimit           = 3
	DefaultHighConfidenceMatches = 2
	DefaultExcerptChars          = 380

	// noProvider tags results when no provider is registered at all.
	noProvider = "none"
)

// ContextBuilder produces the client context summary of a request.
type ContextBuilder interface {
	Build(ctx context.Context, identity string, lang locale.Language) (clientctx.Summary, error)
}

// Gateway performs single provider calls.
type Gateway interface {
	Names() []string
	Call(ctx context.Context, name string, cc convo.CallContext) (gateway.Completion, error)
}

// Config wires an Orchestrator. Knowledge, Context and Gateway may be nil;
// a nil dependency behaves as if it returned nothing.
type Config struct {
	Knowledge knowledge.Searcher
	Context   ContextBuilder
	Gateway   Gateway
	Manager   *convo.Manager
	Logger    zerolog.Logger

	DefaultLanguage       locale.Language
	SearchLimit           int
	HighConfidenceMatches int
	ExcerptChars          int
	// Polish asks the answering provider for a tone rewrite of its reply.
	Polish bool
}

// Orchestrator answers queries. It holds no per-request state and is safe
// for concurrent use.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger
}

// NewOrchestrator applies defaults to cfg and returns an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Manager == nil {
		cfg.Manager = convo.NewManager()
	}
	cfg.DefaultLanguage = cfg.DefaultLanguage.OrDefault(locale.Default)
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.HighConfidenceMatches <= 0 {
		cfg.HighConfidenceMatches = DefaultHighConfidenceMatches
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = DefaultExcerptChars
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "answer").Logger(),
	}
}

// Answer runs one query to a terminal state. It never fails: provider
// errors, timeouts and panics are absorbed into the apology result.
func (o *Orchestrator) Answer(ctx context.Context, q Query) (result Result) {
	lang := q.Language.OrDefault(o.cfg.DefaultLanguage)
	strs := locale.For(lang)
	preferred := o.preferredProvider(q.PreferredProvider)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("identity", q.Identity).Msg("answering failed unexpectedly")
			result = o.apology(lang, preferred)
		}
	}()

	message := strings.TrimSpace(q.Message)
	if message == "" {
		return Result{
			Source:   preferred,
			Reply:    strs.Clarify,
			Provider: &ProviderAnswer{Model: ModelNone, Language: lang},
		}
	}

	summary, matches := o.gather(ctx, q.Identity, message, lang)

	if len(matches) > 0 {
		o.logger.Debug().Int("matches", len(matches)).Msg("answered from knowledge base")
		return o.fromKnowledge(lang, message, matches, summary)
	}

	return o.fromProviders(ctx, q.History, message, lang, preferred, summary)
}

// gather runs the client context lookup and the knowledge search
// concurrently and waits for both. Neither failure aborts the other.
func (o *Orchestrator) gather(ctx context.Context, identity, message string, lang locale.Language) (clientctx.Summary, []knowledge.Match) {
	var (
		g       errgroup.Group
		summary clientctx.Summary
		matches []knowledge.Match
	)

	g.Go(func() error {
		return o.safely("client context", func() {
			if o.cfg.Context == nil {
				return
			}
			s, err := o.cfg.Context.Build(ctx, identity, lang)
			if err != nil {
				o.logger.Warn().Err(err).Str("identity", identity).Msg("client context unavailable")
				return
			}
			summary = s
		})
	})

	g.Go(func() error {
		return o.safely("knowledge search", func() {
			if o.cfg.Knowledge == nil {
				return
			}
			matches = o.cfg.Knowledge.Search(ctx, message, lang, o.cfg.SearchLimit)
		})
	})

	// Errors are already logged; both branches degrade to empty values.
	_ = g.Wait()
	if len(matches) > o.cfg.SearchLimit {
		matches = matches[:o.cfg.SearchLimit]
	}
	return summary, matches
}

// safely runs fn, converting a panic into a logged error.
func (o *Orchestrator) safely(stage string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("stage", stage).Msg("context gathering panicked")
			err = fmt.Errorf("%s panicked: %v", stage, r)
		}
	}()
	fn()
	return nil
}

func (o *Orchestrator) fromKnowledge(lang locale.Language, message string, matches []knowledge.Match, summary clientctx.Summary) Result {
	strs := locale.For(lang)

	var b strings.Builder
	b.WriteString(strs.KnowledgeHeader)
	b.WriteString("\n")
	for _, m := range matches {
		b.WriteString("\n- ")
		if m.Title != "" {
			b.WriteString(m.Title)
			b.WriteString(": ")
		}
		b.WriteString(convo.Excerpt(m.Content, o.cfg.ExcerptChars))
		if m.Source != "" {
			b.WriteString("\n  ")
			b.WriteString(strs.Citation)
			b.WriteString(" ")
			b.WriteString(m.Source)
		}
	}

	if related := relatedDemos(summary.AssignedDemoNames, message, matches); len(related) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strs.RelatedDemos)
		b.WriteString(" ")
		b.WriteString(strs.JoinList(related))
	}
	if summary.Narrative != "" {
		b.WriteString("\n\n")
		b.WriteString(summary.Narrative)
	}

	confidence := ConfidenceMedium
	if len(matches) >= o.cfg.HighConfidenceMatches {
		confidence = ConfidenceHigh
	}

	snippets := make([]knowledge.Match, len(matches))
	copy(snippets, matches)

	return Result{
		Source: SourceKnowledgeBase,
		Reply:  b.String(),
		Knowledge: &KnowledgeAnswer{
			Snippets:   snippets,
			Confidence: confidence,
		},
	}
}

// relatedDemos returns the assigned demos named in the question or in a match.
func relatedDemos(assigned []string, message string, matches []knowledge.Match) []string {
	haystack := []string{strings.ToLower(message)}
	for _, m := range matches {
		haystack = append(haystack, strings.ToLower(m.Title), strings.ToLower(m.Content))
	}

	var related []string
	for _, name := range assigned {
		needle := strings.ToLower(name)
		for _, h := range haystack {
			if strings.Contains(h, needle) {
				related = append(related, name)
				break
			}
		}
	}
	return related
}

func (o *Orchestrator) fromProviders(ctx context.Context, history []convo.Turn, message string, lang locale.Language, preferred string, summary clientctx.Summary) Result {
	order := o.attemptOrder(preferred)

	for i, name := range order {
		if ctx.Err() != nil {
			o.logger.Warn().Err(ctx.Err()).Str("provider", name).Msg("request cancelled before provider attempt")
			break
		}

		cc := o.cfg.Manager.Build(lang, history, summary.Narrative, message)
		completion, err := o.cfg.Gateway.Call(ctx, name, cc)
		if err != nil {
			var perr *gateway.ProviderError
			timedOut := errors.As(err, &perr) && perr.Timeout
			o.logger.Warn().
				Err(err).
				Str("provider", name).
				Int("attempt", i+1).
				Bool("timeout", timedOut).
				Msg("provider attempt failed")
			continue
		}

		reply, polished := completion.Reply, false
		if o.cfg.Polish {
			reply, polished = convo.Polish(ctx, o.rewriter(name, lang), completion.Reply)
			if !polished {
				o.logger.Debug().Str("provider", name).Msg("polish rejected, keeping raw reply")
			}
		}

		model := completion.Model
		if model == "" {
			model = ModelNone
		}
		return Result{
			Source: name,
			Reply:  reply,
			Provider: &ProviderAnswer{
				Model:    model,
				Language: lang,
				Usage:    completion.Usage,
				Polished: polished,
			},
		}
	}

	o.logger.Error().Strs("providers", order).Str("preferred", preferred).Msg("all providers failed")
	return o.apology(lang, preferred)
}

// rewriter asks provider name for a tone rewrite through the gateway.
func (o *Orchestrator) rewriter(name string, lang locale.Language) convo.RewriteFunc {
	return func(ctx context.Context, text string) (string, error) {
		instruction := locale.For(lang).PolishInstruction
		cc := o.cfg.Manager.Build(lang, nil, "", instruction+"\n\n"+text)
		completion, err := o.cfg.Gateway.Call(ctx, name, cc)
		if err != nil {
			return "", err
		}
		return completion.Reply, nil
	}
}

// attemptOrder lists preferred first, then every other registered
// provider in the gateway's fixed order. A preferred provider that is not
// registered is not attempted.
func (o *Orchestrator) attemptOrder(preferred string) []string {
	if o.cfg.Gateway == nil {
		return nil
	}
	names := o.cfg.Gateway.Names()
	order := make([]string, 0, len(names))
	for _, n := range names {
		if n == preferred {
			order = append(order, n)
			break
		}
	}
	for _, n := range names {
		if n != preferred {
			order = append(order, n)
		}
	}
	return order
}

// preferredProvider resolves a requested provider name. Aliases such as
// "claude" map to their canonical name; an empty request picks the first
// registered provider.
func (o *Orchestrator) preferredProvider(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		if pt, err := llm.ParseProviderType(requested); err == nil {
			return pt.String()
		}
		return requested
	}
	if o.cfg.Gateway != nil {
		if names := o.cfg.Gateway.Names(); len(names) > 0 {
			return names[0]
		}
	}
	return noProvider
}

func (o *Orchestrator) apology(lang locale.Language, preferred string) Result {
	return Result{
		Source:   preferred,
		Reply:    locale.For(lang).Fallback,
		Provider: &ProviderAnswer{Model: ModelUnavailable, Language: lang},
	}
}
