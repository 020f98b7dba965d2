package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationMessage(t *testing.T) {
	link := "https://sso.example.com/auth/identity-verification/abc?utm_source=tp.iv&utm_scope=email&utm_id=p1"
	msg, err := ActivationMessage(`"InfinityHubs" <noreply@infinityhubs.in>`, "Ada Lovelace", "a@acme.io", link, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "Let's Confirm & Connect 🚀", msg.Subject)
	assert.Equal(t, "a@acme.io", msg.Recipient)
	assert.Contains(t, msg.HTMLBody, "Hi Ada Lovelace,")
	assert.Contains(t, msg.HTMLBody, "<strong>a@acme.io</strong>")
	assert.Contains(t, msg.HTMLBody, `href="https://sso.example.com/auth/identity-verification/abc?utm_source=tp.iv&amp;utm_scope=email&amp;utm_id=p1"`)
	assert.Contains(t, msg.HTMLBody, "expire in <strong>1 day</strong>")
	assert.NotContains(t, msg.HTMLBody, "##")
}

func TestActivationMessageShowsConfiguredExpiry(t *testing.T) {
	msg, err := ActivationMessage("noreply@infinityhubs.in", "Ada Lovelace", "a@acme.io", "https://x", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, msg.HTMLBody, "expire in <strong>10 minutes</strong>")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 day", HumanDuration(24*time.Hour))
	assert.Equal(t, "2 days", HumanDuration(48*time.Hour))
	assert.Equal(t, "36 hours", HumanDuration(36*time.Hour))
	assert.Equal(t, "1 hour", HumanDuration(time.Hour))
	assert.Equal(t, "90 minutes", HumanDuration(90*time.Minute))
	assert.Equal(t, "45s", HumanDuration(45*time.Second))
}

func TestRenderEscapesValues(t *testing.T) {
	tpl := Template{Body: "<p>##NAME##</p>"}
	out := tpl.Render(map[string]string{"NAME": `<script>alert("x")</script>`})
	assert.False(t, strings.Contains(out, "<script>"))
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestLoadUnknownTemplate(t *testing.T) {
	_, err := Load("Password_Reset")
	assert.Error(t, err)
}
