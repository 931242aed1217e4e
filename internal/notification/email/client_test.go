package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, m...)
	return nil
}

func TestClient_SendEmail(t *testing.T) {
	fake := &fakeDialer{}
	client := NewClient(Config{Enabled: true, From: "orders@example.com"}, nil)
	client.dialer = fake

	ok := client.SendEmail(context.Background(), "c1@example.com", "Your order A1 has been processed", "Thank you.")
	require.True(t, ok)
	require.Len(t, fake.messages, 1)

	msg := fake.messages[0]
	require.Equal(t, []string{"orders@example.com"}, msg.GetHeader("From"))
	require.Equal(t, []string{"c1@example.com"}, msg.GetHeader("To"))
	require.Equal(t, []string{"Your order A1 has been processed"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Thank you.")
}

func TestClient_DisabledOrFailing(t *testing.T) {
	fake := &fakeDialer{}
	disabled := NewClient(Config{Enabled: false}, nil)
	disabled.dialer = fake
	require.False(t, disabled.Enabled())
	require.False(t, disabled.SendEmail(context.Background(), "c1@example.com", "s", "b"))
	require.Empty(t, fake.messages)

	failing := NewClient(Config{Enabled: true}, nil)
	failing.dialer = &fakeDialer{err: errors.New("smtp: 550 mailbox unavailable")}
	require.False(t, failing.SendEmail(context.Background(), "c1@example.com", "s", "b"))
}
