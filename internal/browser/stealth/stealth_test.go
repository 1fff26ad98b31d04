package stealth

import (
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

func TestScript(t *testing.T) {
	script, err := Script(schemas.DefaultPersona)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(function(persona){"))
	assert.Contains(t, script, "'webdriver'")

	start := strings.LastIndex(script, ")({")
	require.Positive(t, start, "persona payload should be passed as the wrapper argument")
	payload := strings.TrimSuffix(script[start+2:], ");")

	var decoded personaPayload
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "Win32", decoded.Platform)
	assert.Equal(t, []string{"en-US", "en", "ar-SA", "ar"}, decoded.Languages)
	assert.EqualValues(t, 1366, decoded.Width)
}

func TestApply(t *testing.T) {
	t.Run("full persona", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		tasks := Apply(schemas.DefaultPersona, zap.New(core))

		// UA, script, metrics, timezone, locale, network enable and headers.
		assert.Len(t, tasks, 7)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Applying browser stealth persona", logs.All()[0].Message)
	})

	t.Run("minimal persona and nil logger", func(t *testing.T) {
		assert.NotPanics(t, func() {
			tasks := Apply(schemas.Persona{UserAgent: "lancet-test"}, nil)
			assert.Len(t, tasks, 2)
		})
	})
}

func TestUserAgentMetadata(t *testing.T) {
	assert.Nil(t, userAgentMetadata(schemas.Persona{}))

	md := userAgentMetadata(schemas.DefaultPersona)
	require.NotNil(t, md)
	assert.Equal(t, "Windows", md.Platform)
	require.Len(t, md.Brands, 3)
	assert.Equal(t, "Google Chrome", md.Brands[0].Brand)
}
