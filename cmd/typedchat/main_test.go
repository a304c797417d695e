package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s33g/typedchat/internal/chat"
	"github.com/s33g/typedchat/internal/config"
	"github.com/s33g/typedchat/internal/mockapi"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	newCounter = func() tokenCounter { return charCounter{} }
	os.Exit(m.Run())
}

type charCounter struct{}

func (charCounter) Count(text, _ string) (int, error) { return len(text), nil }

func (charCounter) CountMessages(messages []chat.Message, _ string) (int, error) {
	return len(messages), nil
}

// startMock serves the fake API and returns its base URL.
func startMock(t *testing.T, scenarios ...config.Scenario) string {
	t.Helper()
	server := mockapi.New(config.MockConfig{Model: "mock-gpt", Scenarios: scenarios}, charCounter{}, zerolog.Nop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/v1"
}

func writeConfig(t *testing.T, baseURL, redisAddr string) string {
	t.Helper()
	content := fmt.Sprintf(`
api:
  base_url: %s
  timeout_seconds: 5
logging:
  level: error
  format: json
`, baseURL)
	if redisAddr != "" {
		content += fmt.Sprintf("redis:\n  enabled: true\n  address: %s\n", redisAddr)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), args, &out)
	return out.String(), err
}

func TestExecute_Help(t *testing.T) {
	out, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")

	out, err = run(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "mock")
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := run(t, "dance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "dance"`)
}

func TestAsk(t *testing.T) {
	cfg := writeConfig(t, startMock(t), "")

	out, err := run(t, "ask", "-config", cfg, "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "You said: hello world\n", out)
}

func TestAsk_WithImage(t *testing.T) {
	cfg := writeConfig(t, startMock(t), "")

	out, err := run(t, "ask", "-config", cfg, "-image", "https://example.com/cat.png", "-detail", "low", "what is this")
	require.NoError(t, err)
	assert.Equal(t, "You said: what is this\n", out)
}

func TestAsk_Errors(t *testing.T) {
	cfg := writeConfig(t, startMock(t, config.Scenario{
		Match: "nope",
		Error: &config.ErrorScenario{Status: 401, Message: "Incorrect API key provided.", Type: "invalid_request_error", Code: "invalid_api_key"},
	}), "")

	_, err := run(t, "ask", "-config", cfg)
	assert.EqualError(t, err, "ask requires a prompt")

	_, err = run(t, "ask", "-config", cfg, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided.")

	_, err = run(t, "ask", "-config", filepath.Join(t.TempDir(), "missing.yaml"), "hi")
	assert.Error(t, err)
}

func TestSpam(t *testing.T) {
	cfg := writeConfig(t, startMock(t, config.Scenario{
		Match:   "buy now",
		Content: `{"reason":"Unsolicited sales pitch.","is_spam":true}`,
	}), "")

	out, err := run(t, "spam", "-config", cfg, "BUY NOW cheap watches")
	require.NoError(t, err)
	assert.Equal(t, "spam: true\nreason: Unsolicited sales pitch.\n", out)

	_, err = run(t, "spam", "-config", cfg, "good morning")
	assert.Error(t, err, "an echo does not match the result schema")
}

func TestUsage(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := writeConfig(t, startMock(t), mr.Addr())

	out, err := run(t, "usage", "-config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "no usage recorded")

	_, err = run(t, "ask", "-config", cfg, "hi")
	require.NoError(t, err)
	_, err = run(t, "ask", "-config", cfg, "again")
	require.NoError(t, err)

	out, err = run(t, "usage", "-config", cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "gpt-4o-mini\trequests=2\t"), out)
}

func TestAsk_Session(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := writeConfig(t, startMock(t), mr.Addr())

	out, err := run(t, "ask", "-config", cfg, "-session", "s1", "-system", "Be terse.", "hi")
	require.NoError(t, err)
	assert.Equal(t, "You said: hi\n", out)

	out, err = run(t, "ask", "-config", cfg, "-session", "s1", "again")
	require.NoError(t, err)
	assert.Equal(t, "You said: again\n", out)

	stored, err := mr.List("typedchat:session:s1:messages")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.JSONEq(t, `{"role":"assistant","content":"You said: again"}`, stored[3])
	assert.Equal(t, "Be terse.", mr.HGet("typedchat:session:s1", "system_prompt"))

	_, err = run(t, "ask", "-config", writeConfig(t, startMock(t), ""), "-session", "s1", "hi")
	assert.ErrorContains(t, err, "redis.enabled")
}

func TestUsage_RequiresRedis(t *testing.T) {
	cfg := writeConfig(t, startMock(t), "")

	_, err := run(t, "usage", "-config", cfg)
	assert.ErrorContains(t, err, "redis.enabled")

	_, err = run(t, "usage", "-day", "yesterday")
	assert.ErrorContains(t, err, "invalid -day")
}

func TestMock_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Execute(ctx, []string{"mock", "-addr", "127.0.0.1:0"}, &bytes.Buffer{})
	assert.NoError(t, err)
}
