package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/concierge/clientctx"
	"github.com/richinex/concierge/convo"
	"github.com/richinex/concierge/gateway"
	"github.com/richinex/concierge/knowledge"
	"github.com/richinex/concierge/llm"
	"github.com/richinex/concierge/locale"
)

// stubSearcher returns fixed matches and counts calls.
type stubSearcher struct {
	matches    []knowledge.Match
	calls      atomic.Int32
	searchFunc func(ctx context.Context) []knowledge.Match
}

func (s *stubSearcher) Search(ctx context.Context, query string, lang locale.Language, limit int) []knowledge.Match {
	s.calls.Add(1)
	if s.searchFunc != nil {
		return s.searchFunc(ctx)
	}
	return s.matches
}

// stubContext returns a fixed summary.
type stubContext struct {
	summary   clientctx.Summary
	err       error
	calls     atomic.Int32
	buildFunc func(ctx context.Context) (clientctx.Summary, error)
}

func (s *stubContext) Build(ctx context.Context, identity string, lang locale.Language) (clientctx.Summary, error) {
	s.calls.Add(1)
	if s.buildFunc != nil {
		return s.buildFunc(ctx)
	}
	return s.summary, s.err
}

// stubGateway records attempts in order.
type stubGateway struct {
	names    []string
	replies  map[string]func(cc convo.CallContext) (gateway.Completion, error)
	attempts []string
	contexts []convo.CallContext
}

func (g *stubGateway) Names() []string { return g.names }

func (g *stubGateway) Call(ctx context.Context, name string, cc convo.CallContext) (gateway.Completion, error) {
	g.attempts = append(g.attempts, name)
	g.contexts = append(g.contexts, cc)
	if fn, ok := g.replies[name]; ok {
		return fn(cc)
	}
	return gateway.Completion{}, &gateway.ProviderError{Provider: name, Err: gateway.ErrUnknownProvider}
}

func succeed(name, reply string) func(convo.CallContext) (gateway.Completion, error) {
	return func(convo.CallContext) (gateway.Completion, error) {
		return gateway.Completion{Provider: name, Reply: reply, Model: name + "-model"}, nil
	}
}

func fail(name string) func(convo.CallContext) (gateway.Completion, error) {
	return func(convo.CallContext) (gateway.Completion, error) {
		return gateway.Completion{}, &gateway.ProviderError{Provider: name, Err: errors.New("503 service unavailable")}
	}
}

func newTestOrchestrator(cfg Config) *Orchestrator {
	cfg.Logger = zerolog.Nop()
	return NewOrchestrator(cfg)
}

func TestKnowledgeHitNeverCallsProviders(t *testing.T) {
	searcher := &stubSearcher{matches: []knowledge.Match{{Content: "Support is open on weekdays."}}}
	gw := &stubGateway{names: []string{"openai", "anthropic"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"openai": succeed("openai", "should not be used"),
	}}
	o := newTestOrchestrator(Config{Knowledge: searcher, Gateway: gw})

	result := o.Answer(context.Background(), Query{Identity: "u1", Message: "When is support open?", Language: locale.English})

	assert.Equal(t, SourceKnowledgeBase, result.Source)
	assert.True(t, result.FromKnowledgeBase())
	assert.Nil(t, result.Provider)
	assert.Empty(t, gw.attempts)
}

func TestConfidenceRule(t *testing.T) {
	cases := []struct {
		matches int
		want    Confidence
	}{
		{1, ConfidenceMedium},
		{2, ConfidenceHigh},
		{3, ConfidenceHigh},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d matches", tc.matches), func(t *testing.T) {
			var matches []knowledge.Match
			for i := 0; i < tc.matches; i++ {
				matches = append(matches, knowledge.Match{Content: fmt.Sprintf("snippet %d", i)})
			}
			o := newTestOrchestrator(Config{Knowledge: &stubSearcher{matches: matches}})

			result := o.Answer(context.Background(), Query{Message: "anything"})

			require.NotNil(t, result.Knowledge)
			assert.Equal(t, tc.want, result.Knowledge.Confidence)
			assert.Len(t, result.Knowledge.Snippets, tc.matches)
		})
	}
}

func TestConfidenceThresholdConfigurable(t *testing.T) {
	matches := []knowledge.Match{{Content: "a"}, {Content: "b"}}
	o := newTestOrchestrator(Config{Knowledge: &stubSearcher{matches: matches}, HighConfidenceMatches: 3})

	result := o.Answer(context.Background(), Query{Message: "anything"})

	assert.Equal(t, ConfidenceMedium, result.Knowledge.Confidence)
}

func TestFallbackOrderStartsWithPreferred(t *testing.T) {
	gw := &stubGateway{names: []string{"A", "B"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": succeed("A", "answer from A"),
		"B": fail("B"),
	}}
	o := newTestOrchestrator(Config{Knowledge: &stubSearcher{}, Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello", PreferredProvider: "B"})

	assert.Equal(t, []string{"B", "A"}, gw.attempts)
	assert.Equal(t, "A", result.Source)
	assert.Equal(t, "answer from A", result.Reply)
	require.NotNil(t, result.Provider)
	assert.Equal(t, "A-model", result.Provider.Model)
	assert.Nil(t, result.Knowledge)
}

func TestFirstSuccessWins(t *testing.T) {
	gw := &stubGateway{names: []string{"A", "B", "C"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": succeed("A", "first"),
		"B": succeed("B", "second"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello", PreferredProvider: "A"})

	assert.Equal(t, []string{"A"}, gw.attempts)
	assert.Equal(t, "first", result.Reply)
}

func TestTotalFailureReturnsApology(t *testing.T) {
	gw := &stubGateway{names: []string{"A", "B"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": fail("A"),
		"B": fail("B"),
	}}
	o := newTestOrchestrator(Config{Knowledge: &stubSearcher{}, Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hola", Language: locale.Spanish, PreferredProvider: "B"})

	assert.Equal(t, "B", result.Source)
	require.NotNil(t, result.Provider)
	assert.Equal(t, ModelUnavailable, result.Provider.Model)
	assert.Equal(t, locale.For(locale.Spanish).Fallback, result.Reply)
	assert.True(t, result.Degraded())
	assert.Equal(t, []string{"B", "A"}, gw.attempts)
}

func TestNoProvidersReturnsApology(t *testing.T) {
	o := newTestOrchestrator(Config{Knowledge: &stubSearcher{}})

	result := o.Answer(context.Background(), Query{Message: "hello", Language: locale.English})

	assert.True(t, result.Degraded())
	assert.Equal(t, locale.For(locale.English).Fallback, result.Reply)
}

func TestUnregisteredPreferredIsNotAttempted(t *testing.T) {
	gw := &stubGateway{names: []string{"openai"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"openai": fail("openai"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello", PreferredProvider: "gemini"})

	assert.Equal(t, []string{"openai"}, gw.attempts)
	assert.Equal(t, "gemini", result.Source)
	assert.Equal(t, ModelUnavailable, result.Provider.Model)
}

func TestPreferredProviderAlias(t *testing.T) {
	gw := &stubGateway{names: []string{"openai", "anthropic"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"anthropic": succeed("anthropic", "from claude"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello", PreferredProvider: "Claude"})

	assert.Equal(t, []string{"anthropic"}, gw.attempts)
	assert.Equal(t, "anthropic", result.Source)
}

func TestDefaultPreferredIsFirstRegistered(t *testing.T) {
	gw := &stubGateway{names: []string{"openai", "anthropic"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"anthropic": succeed("anthropic", "ok"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello"})

	assert.Equal(t, []string{"openai", "anthropic"}, gw.attempts)
	assert.Equal(t, "anthropic", result.Source)
}

func TestHistoryCapDropsOldestTurns(t *testing.T) {
	var history []convo.Turn
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			history = append(history, convo.UserTurn(fmt.Sprintf("turn %d", i)))
		} else {
			history = append(history, convo.AssistantTurn(fmt.Sprintf("turn %d", i)))
		}
	}
	gw := &stubGateway{names: []string{"A"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": succeed("A", "ok"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	o.Answer(context.Background(), Query{Message: "latest", History: history})

	require.Len(t, gw.contexts, 1)
	cc := gw.contexts[0]
	require.Len(t, cc.History, convo.DefaultMaxTurns)
	assert.Equal(t, "turn 12", cc.History[0].Content)
	assert.Equal(t, "turn 19", cc.History[len(cc.History)-1].Content)
	assert.Equal(t, "latest", cc.Message)
	assert.NotEmpty(t, cc.SystemPolicy)
	assert.Len(t, history, 20, "caller history must not be mutated")
}

func TestNarrativeCarriedAsAssistantTurn(t *testing.T) {
	narrative := "El cliente tiene acceso a las siguientes demos: Guardian AI."
	gw := &stubGateway{names: []string{"A"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": succeed("A", "ok"),
	}}
	o := newTestOrchestrator(Config{
		Context: &stubContext{summary: clientctx.Summary{AssignedDemoNames: []string{"Guardian AI"}, Narrative: narrative}},
		Gateway: gw,
	})

	o.Answer(context.Background(), Query{Identity: "u1", Message: "¿precio?", History: []convo.Turn{convo.UserTurn("hola")}})

	cc := gw.contexts[0]
	require.Len(t, cc.History, 2)
	assert.Equal(t, convo.AssistantTurn(narrative), cc.History[1])
}

func TestEmptyMessageGuard(t *testing.T) {
	searcher := &stubSearcher{matches: []knowledge.Match{{Content: "x"}}}
	ctxBuilder := &stubContext{}
	gw := &stubGateway{names: []string{"A"}}
	o := newTestOrchestrator(Config{Knowledge: searcher, Context: ctxBuilder, Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "   ", Language: locale.English})

	assert.Equal(t, locale.For(locale.English).Clarify, result.Reply)
	assert.Equal(t, "A", result.Source)
	assert.Equal(t, ModelNone, result.Provider.Model)
	assert.Equal(t, int32(0), searcher.calls.Load())
	assert.Equal(t, int32(0), ctxBuilder.calls.Load())
	assert.Empty(t, gw.attempts)
}

func TestGuardianAIScenario(t *testing.T) {
	searcher := &stubSearcher{matches: []knowledge.Match{{
		Content: "Guardian AI monitorea amenazas en tiempo real y envía alertas al equipo de seguridad.",
		Title:   "Guardian AI",
	}}}
	gw := &stubGateway{names: []string{"openai", "anthropic"}}
	o := newTestOrchestrator(Config{Knowledge: searcher, Context: &stubContext{}, Gateway: gw})

	result := o.Answer(context.Background(), Query{
		Identity: "u1",
		Message:  "¿Qué incluye Guardian AI?",
		Language: locale.Spanish,
	})

	assert.Equal(t, "knowledge-base", result.Source)
	require.NotNil(t, result.Knowledge)
	assert.Equal(t, ConfidenceMedium, result.Knowledge.Confidence)
	assert.Contains(t, result.Reply, "Guardian AI monitorea amenazas")
	assert.True(t, strings.HasPrefix(result.Reply, "Esto es lo que encontré en nuestra base de conocimiento:"))
	assert.Empty(t, gw.attempts)
}

func TestKnowledgeReplyComposition(t *testing.T) {
	long := strings.Repeat("a", 500)
	searcher := &stubSearcher{matches: []knowledge.Match{
		{Content: long, Title: "Guardian AI", Source: "docs/guardian.md"},
		{Content: "Atlas CRM tracks accounts."},
	}}
	summary := clientctx.Summary{
		AssignedDemoNames: []string{"Guardian AI", "Nimbus Analytics"},
		Narrative:         "The client has access to the following demos: Guardian AI and Nimbus Analytics.",
	}
	o := newTestOrchestrator(Config{Knowledge: searcher, Context: &stubContext{summary: summary}})

	result := o.Answer(context.Background(), Query{Identity: "u1", Message: "guardian?", Language: locale.English})

	assert.Contains(t, result.Reply, strings.Repeat("a", DefaultExcerptChars)+"…")
	assert.NotContains(t, result.Reply, strings.Repeat("a", DefaultExcerptChars+1))
	assert.Contains(t, result.Reply, "Source: docs/guardian.md")
	assert.Contains(t, result.Reply, "Your related demos: Guardian AI")
	assert.NotContains(t, result.Reply, "related demos: Guardian AI and Nimbus")
	assert.True(t, strings.HasSuffix(result.Reply, summary.Narrative))
	assert.Equal(t, long, result.Knowledge.Snippets[0].Content)
}

func TestContextFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{matches: []knowledge.Match{{Content: "Guardian AI monitorea amenazas."}}}
	o := newTestOrchestrator(Config{
		Knowledge: searcher,
		Context:   &stubContext{err: errors.New("entitlements offline")},
	})

	result := o.Answer(context.Background(), Query{Identity: "u1", Message: "guardian", Language: locale.Spanish})

	assert.Equal(t, SourceKnowledgeBase, result.Source)
	assert.NotContains(t, result.Reply, "tiene acceso")
}

func TestContextGatheringRunsConcurrently(t *testing.T) {
	searchStarted := make(chan struct{})
	contextStarted := make(chan struct{})
	awaitOther := func(mine, other chan struct{}) bool {
		close(mine)
		select {
		case <-other:
			return true
		case <-time.After(2 * time.Second):
			return false
		}
	}

	var overlapped atomic.Int32
	searcher := &stubSearcher{searchFunc: func(ctx context.Context) []knowledge.Match {
		if awaitOther(searchStarted, contextStarted) {
			overlapped.Add(1)
		}
		return []knowledge.Match{{Content: "x"}}
	}}
	ctxBuilder := &stubContext{buildFunc: func(ctx context.Context) (clientctx.Summary, error) {
		if awaitOther(contextStarted, searchStarted) {
			overlapped.Add(1)
		}
		return clientctx.Summary{}, nil
	}}
	o := newTestOrchestrator(Config{Knowledge: searcher, Context: ctxBuilder})

	o.Answer(context.Background(), Query{Identity: "u1", Message: "hello"})

	assert.Equal(t, int32(2), overlapped.Load())
}

func TestSearcherPanicFallsThroughToProviders(t *testing.T) {
	searcher := &stubSearcher{searchFunc: func(ctx context.Context) []knowledge.Match {
		panic("index corrupted")
	}}
	gw := &stubGateway{names: []string{"A"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": succeed("A", "ok"),
	}}
	o := newTestOrchestrator(Config{Knowledge: searcher, Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello"})

	assert.Equal(t, "A", result.Source)
}

func TestPanicInChainReturnsApology(t *testing.T) {
	gw := &stubGateway{names: []string{"A"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": func(convo.CallContext) (gateway.Completion, error) { panic("nil pointer") },
	}}
	o := newTestOrchestrator(Config{Gateway: gw})

	var result Result
	require.NotPanics(t, func() {
		result = o.Answer(context.Background(), Query{Message: "hello", Language: locale.English})
	})
	assert.True(t, result.Degraded())
	assert.Equal(t, "A", result.Source)
}

func TestPolishKeepsRawWhenCitationDropped(t *testing.T) {
	raw := "Guardian AI watches threats.\nSource: https://example.com"
	calls := 0
	gw := &stubGateway{names: []string{"A", "B"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": func(cc convo.CallContext) (gateway.Completion, error) {
			calls++
			if calls == 1 {
				return gateway.Completion{Reply: raw, Model: "a-1"}, nil
			}
			return gateway.Completion{Reply: "Guardian AI lovingly watches threats."}, nil
		},
	}}
	o := newTestOrchestrator(Config{Gateway: gw, Polish: true})

	result := o.Answer(context.Background(), Query{Message: "what is guardian?", Language: locale.English})

	assert.Equal(t, raw, result.Reply)
	assert.False(t, result.Provider.Polished)
	assert.Equal(t, []string{"A", "A"}, gw.attempts)
	assert.Contains(t, gw.contexts[1].Message, raw)
	assert.Contains(t, gw.contexts[1].Message, locale.For(locale.English).PolishInstruction)
}

func TestPolishAcceptsRewriteKeepingCitation(t *testing.T) {
	raw := "Guardian AI watches threats.\nSource: https://example.com"
	polished := "Guardian AI keeps watch over threats for you.\nSource: https://example.com"
	calls := 0
	gw := &stubGateway{names: []string{"A"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": func(cc convo.CallContext) (gateway.Completion, error) {
			calls++
			if calls == 1 {
				return gateway.Completion{Reply: raw, Model: "a-1"}, nil
			}
			return gateway.Completion{Reply: polished, Model: "a-1"}, nil
		},
	}}
	o := newTestOrchestrator(Config{Gateway: gw, Polish: true})

	result := o.Answer(context.Background(), Query{Message: "what is guardian?", Language: locale.English})

	assert.Equal(t, polished, result.Reply)
	assert.True(t, result.Provider.Polished)
	assert.Equal(t, "A", result.Source)
}

func TestPolishFailureKeepsRaw(t *testing.T) {
	calls := 0
	gw := &stubGateway{names: []string{"A", "B"}, replies: map[string]func(convo.CallContext) (gateway.Completion, error){
		"A": func(cc convo.CallContext) (gateway.Completion, error) {
			calls++
			if calls == 1 {
				return gateway.Completion{Reply: "raw answer"}, nil
			}
			return gateway.Completion{}, errors.New("rate limited")
		},
		"B": succeed("B", "never"),
	}}
	o := newTestOrchestrator(Config{Gateway: gw, Polish: true})

	result := o.Answer(context.Background(), Query{Message: "hello"})

	assert.Equal(t, "raw answer", result.Reply)
	assert.Equal(t, "A", result.Source)
	assert.NotContains(t, gw.attempts, "B")
}

// stubProvider is a real llm.Provider behind the real gateway.
type stubProvider struct {
	name  string
	delay time.Duration
	reply string
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Model() string { return p.name + "-default" }
func (p *stubProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	select {
	case <-time.After(p.delay):
		return llm.LLMResponse{Content: p.reply}, nil
	case <-ctx.Done():
		return llm.LLMResponse{}, ctx.Err()
	}
}

func TestTimeoutFallsBackToNextProvider(t *testing.T) {
	gw := gateway.New(30*time.Millisecond,
		&stubProvider{name: "openai", delay: time.Second, reply: "too late"},
		&stubProvider{name: "anthropic", reply: "on time"},
	)
	o := newTestOrchestrator(Config{Knowledge: &stubSearcher{}, Gateway: gw})

	result := o.Answer(context.Background(), Query{Message: "hello", PreferredProvider: "openai"})

	assert.Equal(t, "anthropic", result.Source)
	assert.Equal(t, "on time", result.Reply)
	assert.Equal(t, "anthropic-default", result.Provider.Model)
}

func TestCancelledRequestStopsChain(t *testing.T) {
	gw := &stubGateway{names: []string{"A", "B"}}
	o := newTestOrchestrator(Config{Gateway: gw})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := o.Answer(ctx, Query{Message: "hello"})

	assert.Empty(t, gw.attempts)
	assert.True(t, result.Degraded())
}
