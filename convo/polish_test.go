package convo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const rawWithCitation = "Guardian AI monitors threats in real time.\nSource: https://example.com"

func TestPolishAcceptsRewriteKeepingCitation(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "Great question! Guardian AI keeps an eye on threats around the clock.\nSource: https://example.com", nil
	}

	got, accepted := Polish(context.Background(), rewrite, rawWithCitation)

	assert.True(t, accepted)
	assert.Contains(t, got, "Source: https://example.com")
}

func TestPolishRejectsRewriteDroppingCitation(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "Guardian AI keeps an eye on threats around the clock.", nil
	}

	got, accepted := Polish(context.Background(), rewrite, rawWithCitation)

	assert.False(t, accepted)
	assert.Equal(t, rawWithCitation, got)
}

func TestPolishRejectsChangedCitationValue(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "Guardian AI watches threats.\nSource: https://example.org", nil
	}

	got, accepted := Polish(context.Background(), rewrite, rawWithCitation)

	assert.False(t, accepted)
	assert.Equal(t, rawWithCitation, got)
}

func TestPolishAcceptsTranslatedMarker(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "Guardian AI vigila amenazas.\nFuente: https://example.com", nil
	}

	_, accepted := Polish(context.Background(), rewrite, rawWithCitation)

	assert.True(t, accepted)
}

func TestPolishFallsBackOnError(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "", errors.New("provider down")
	}

	got, accepted := Polish(context.Background(), rewrite, rawWithCitation)

	assert.False(t, accepted)
	assert.Equal(t, rawWithCitation, got)
}

func TestPolishRejectsEmptyRewrite(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "   ", nil
	}

	got, accepted := Polish(context.Background(), rewrite, "plain answer")

	assert.False(t, accepted)
	assert.Equal(t, "plain answer", got)
}

func TestPolishWithoutCitations(t *testing.T) {
	rewrite := func(ctx context.Context, text string) (string, error) {
		return "A warmer answer.", nil
	}

	got, accepted := Polish(context.Background(), rewrite, "An answer.")

	assert.True(t, accepted)
	assert.Equal(t, "A warmer answer.", got)
}

func TestCitationsRecognizesBothLanguages(t *testing.T) {
	citations := Citations("intro\n  fuente: manual interno\nSource: https://a.example\nnot a Source: line")

	if assert.Len(t, citations, 2) {
		assert.Equal(t, "manual interno", citations[0].Value)
		assert.Equal(t, "https://a.example", citations[1].Value)
	}
}
