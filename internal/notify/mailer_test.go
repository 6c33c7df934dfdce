package notify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/cybereye/internal/config"
)

func TestSend_DisabledWithoutCredentials(t *testing.T) {
	m := NewMailer(config.EmailConfig{Username: "me@example.com", SMTPHost: "smtp.example.com", SMTPPort: 465})
	require.False(t, m.Enabled())

	err := m.Send(context.Background(), Alert{Subject: "x"})
	require.ErrorIs(t, err, ErrEmailDisabled)
}

func TestRecipientDefaultsToSender(t *testing.T) {
	m := NewMailer(config.EmailConfig{Username: "me@example.com", Password: "pw"})
	require.Equal(t, "me@example.com", m.Recipient())

	m = NewMailer(config.EmailConfig{Username: "me@example.com", Password: "pw", To: "phone@example.com"})
	require.Equal(t, "phone@example.com", m.Recipient())
}

func TestBuildMessage(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "intruder_20250101_120000.jpg")
	require.NoError(t, os.WriteFile(photo, []byte{0xff, 0xd8, 0xff, 0xd9}, 0600))

	m := NewMailer(config.EmailConfig{
		Username: "me@example.com",
		Password: "pw",
		To:       "alerts@example.com",
	})

	msg, err := m.buildMessage(Alert{
		Subject:    "Cyber Eye Alert - Stranger detected",
		Body:       "CyberEye detected an unrecognized face.",
		Attachment: photo,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	require.Contains(t, raw, "Subject: Cyber Eye Alert - Stranger detected")
	require.Contains(t, raw, "alerts@example.com")
	require.Contains(t, raw, "me@example.com")
	require.Contains(t, raw, "intruder_20250101_120000.jpg")
}

func TestBuildMessage_InvalidSender(t *testing.T) {
	m := NewMailer(config.EmailConfig{Username: "not an address", Password: "pw"})
	_, err := m.buildMessage(Alert{Subject: "x", Body: "y"})
	require.Error(t, err)
}
