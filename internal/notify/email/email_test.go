package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func validConfig() Config {
	return Config{
		Host:          "smtp.gmail.com",
		Port:          465,
		Username:      "robot@example.com",
		Password:      "app-secret",
		To:            "ops@example.com",
		SubjectPrefix: "NEW eZamowienia Found",
	}
}

func note() tender.Notification {
	return tender.Notification{
		RunID:        "run-1",
		Date:         time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		Body:         []byte(`[{"phrase": "Linux"}, {"results": []}]`),
		ArtifactName: "results-e-zam.json",
		Records:      1,
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*Config){
		"host":     func(c *Config) { c.Host = "" },
		"port":     func(c *Config) { c.Port = 0 },
		"account":  func(c *Config) { c.Username = "" },
		"password": func(c *Config) { c.Password = "" },
		"to":       func(c *Config) { c.To = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	n, err := New(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "email", n.Name())
}

func TestNotifySendsComposedMessage(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{}
	n, err := newWithSender(validConfig(), fake)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), note()))
	require.Len(t, fake.sent, 1)

	var buf bytes.Buffer
	_, err = fake.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: NEW eZamowienia Found - 2026-10-19")
	assert.Contains(t, raw, "robot@example.com")
	assert.Contains(t, raw, "ops@example.com")
	assert.Contains(t, raw, "results-e-zam.json")
	assert.Contains(t, raw, "text/plain")
}

func TestNotifyWrapsSendError(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{err: errors.New("535 auth failed")}
	n, err := newWithSender(validConfig(), fake)
	require.NoError(t, err)

	err = n.Notify(context.Background(), note())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send mail")
}

func TestComposeRejectsBadAddress(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.To = "not an address"
	n, err := newWithSender(cfg, &fakeSender{})
	require.NoError(t, err)

	_, err = n.Compose(note())
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "NEW eZamowienia Found - 2026-01-02", Subject("", day))
	assert.Equal(t, "Przetargi - 2026-01-02", Subject("Przetargi", day))
}
