package llm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/pkg/gemini"
)

func TestNewFactoryRequiresGeminiKey(t *testing.T) {
	_, err := NewFactory(Config{Provider: "anthropic", AnthropicKey: "ak"})
	require.Error(t, err)
}

func TestNewFactoryAnthropicRequiresKey(t *testing.T) {
	_, err := NewFactory(Config{Provider: "anthropic", GeminiKey: "gk"})
	require.Error(t, err)
}

func TestNewFactoryUnknownProvider(t *testing.T) {
	_, err := NewFactory(Config{Provider: "openai", GeminiKey: "gk"})
	require.Error(t, err)
}

func TestNewFactoryBuildsFreshProviders(t *testing.T) {
	factory, err := NewFactory(Config{Provider: "gemini", GeminiKey: "gk"})
	require.NoError(t, err)

	a := factory()
	b := factory()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotSame(t, a, b, "each worker gets its own provider instance")
}

func TestClassifyGeminiErrStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   resilience.ErrorKind
	}{
		{429, resilience.KindRateLimited},
		{401, resilience.KindProviderFatal},
		{503, resilience.KindTransport},
		{504, resilience.KindTimeout},
	}
	for _, tc := range cases {
		err := classifyGeminiErr(&gemini.StatusError{StatusCode: tc.status})
		assert.Equal(t, tc.want, resilience.KindOf(err), "status %d", tc.status)
	}
}

func TestClassifyGeminiErrFallback(t *testing.T) {
	err := classifyGeminiErr(fmt.Errorf("dial tcp: no such host"))
	assert.Equal(t, resilience.KindTransport, resilience.KindOf(err))

	err = classifyGeminiErr(fmt.Errorf("something odd"))
	assert.Equal(t, resilience.KindUnknown, resilience.KindOf(err))
}
