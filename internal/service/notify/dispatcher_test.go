package notify_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/notify"
)

type call struct {
	to, subject, body string
}

type fakeSMS struct {
	mu      sync.Mutex
	enabled bool
	ok      bool
	calls   []call
}

func (f *fakeSMS) Enabled() bool { return f.enabled }

func (f *fakeSMS) SendText(_ context.Context, phone, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{to: phone, body: body})
	return f.ok
}

type panickingSMS struct{}

func (panickingSMS) Enabled() bool { return true }

func (panickingSMS) SendText(context.Context, string, string) bool {
	panic("smsc session torn down")
}

type fakeEmail struct {
	mu      sync.Mutex
	enabled bool
	ok      bool
	calls   []call
}

func (f *fakeEmail) Enabled() bool { return f.enabled }

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{to: to, subject: subject, body: body})
	return f.ok
}

func completedOrder(email string) domain.Order {
	return domain.Order{
		ID:            "id-1",
		OrderID:       "A1",
		CustomerID:    "C1",
		CustomerPhone: "+15550001",
		CustomerEmail: email,
		Status:        domain.OrderStatusCompleted,
		Items:         []string{"x"},
	}
}

func TestDispatch_BothChannels(t *testing.T) {
	sms := &fakeSMS{enabled: true, ok: true}
	mail := &fakeEmail{enabled: true, ok: true}
	d := notify.NewDispatcher(sms, mail, nil, nil)

	report := d.Dispatch(context.Background(), completedOrder("c1@example.com"))

	require.Equal(t, notify.Report{SMS: notify.Delivered, Email: notify.Delivered}, report)
	require.Equal(t, []call{{to: "+15550001", body: "Your order A1 has been processed"}}, sms.calls)
	require.Equal(t, []call{{
		to:      "c1@example.com",
		subject: "Your order A1 has been processed",
		body:    "Thank you for your order. Your order with ID A1 has been successfully processed.",
	}}, mail.calls)
}

func TestDispatch_NoEmailAddressSkipsEmail(t *testing.T) {
	sms := &fakeSMS{enabled: true, ok: true}
	mail := &fakeEmail{enabled: true, ok: true}
	d := notify.NewDispatcher(sms, mail, nil, nil)

	report := d.Dispatch(context.Background(), completedOrder(""))

	require.Equal(t, notify.Delivered, report.SMS)
	require.Equal(t, notify.Skipped, report.Email)
	require.Empty(t, mail.calls)
}

func TestDispatch_FailuresAreReportedNotRaised(t *testing.T) {
	sms := &fakeSMS{enabled: true, ok: false}
	mail := &fakeEmail{enabled: true, ok: false}
	d := notify.NewDispatcher(sms, mail, nil, nil)

	report := d.Dispatch(context.Background(), completedOrder("c1@example.com"))

	require.Equal(t, notify.Report{SMS: notify.Failed, Email: notify.Failed}, report)
	// Сбой SMS не мешает попытке отправить email.
	require.Len(t, mail.calls, 1)
}

func TestDispatch_DisabledChannelsSkipped(t *testing.T) {
	sms := &fakeSMS{enabled: false, ok: true}
	mail := &fakeEmail{enabled: false, ok: true}
	d := notify.NewDispatcher(sms, mail, nil, nil)

	report := d.Dispatch(context.Background(), completedOrder("c1@example.com"))

	require.Equal(t, notify.Report{SMS: notify.Skipped, Email: notify.Skipped}, report)
	require.Empty(t, sms.calls)
	require.Empty(t, mail.calls)

	nilChannels := notify.NewDispatcher(nil, nil, nil, nil)
	require.Equal(t, notify.Report{SMS: notify.Skipped, Email: notify.Skipped},
		nilChannels.Dispatch(context.Background(), completedOrder("c1@example.com")))
}

func TestDispatch_ChannelPanicIsContained(t *testing.T) {
	email := &fakeEmail{enabled: true, ok: true}
	d := notify.NewDispatcher(panickingSMS{}, email, nil, nil)

	var report notify.Report
	require.NotPanics(t, func() {
		report = d.Dispatch(context.Background(), completedOrder("a@b.c"))
	})
	require.Equal(t, notify.Report{SMS: notify.Failed, Email: notify.Delivered}, report)
	require.Len(t, email.calls, 1)
}
