package sender

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/kinozal-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockWriter struct {
	mock.Mock
	written strings.Builder
}

func (m *MockWriter) Write(p []byte) (int, error) {
	m.written.Write(p)
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func noticeBody(t *testing.T, kind string) []byte {
	t.Helper()
	body, err := json.Marshal(models.NoticeMessage{
		Email:    "alice@example.com",
		Username: "alice",
		Kind:     kind,
		PlanName: "standard",
	})
	require.NoError(t, err)
	return body
}

func setupHappyPath(transport *MockTransport, client *MockSMTPClient, writer *MockWriter) {
	transport.On("GetSMTPUser").Return("noreply@kinozal.local")
	transport.On("Connect").Return(client, nil).Once()
	client.On("Mail", "noreply@kinozal.local").Return(nil).Once()
	client.On("Rcpt", "alice@example.com").Return(nil).Once()
	client.On("Data").Return(writer, nil).Once()
	writer.On("Write", mock.Anything).Return(0, nil).Once()
	writer.On("Close").Return(nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
}

func TestSendSubscriptionNotice(t *testing.T) {
	for _, kind := range []string{models.NoticeRenewed, models.NoticeExpired, models.NoticeExpiringSoon} {
		t.Run(kind, func(t *testing.T) {
			transport := new(MockTransport)
			client := new(MockSMTPClient)
			writer := new(MockWriter)
			setupHappyPath(transport, client, writer)

			service := New(transport, newNoopLogger())
			err := service.SendSubscriptionNotice(noticeBody(t, kind))
			require.NoError(t, err)

			message := writer.written.String()
			assert.Contains(t, message, "To: alice@example.com")
			assert.Contains(t, message, "alice")
			assert.Contains(t, message, "standard")

			transport.AssertExpectations(t)
			client.AssertExpectations(t)
			writer.AssertExpectations(t)
		})
	}
}

func TestSendSubscriptionNoticeUnknownKind(t *testing.T) {
	service := New(new(MockTransport), newNoopLogger())
	err := service.SendSubscriptionNotice(noticeBody(t, "unknown"))
	assert.Error(t, err)
}

func TestSendSubscriptionNoticeInvalidJSON(t *testing.T) {
	service := New(new(MockTransport), newNoopLogger())
	err := service.SendSubscriptionNotice([]byte("not-json"))
	assert.Error(t, err)
}

func TestSendSubscriptionNoticeConnectError(t *testing.T) {
	transport := new(MockTransport)
	transport.On("GetSMTPUser").Return("noreply@kinozal.local")
	transport.On("Connect").Return(nil, errors.New("dial error")).Once()

	service := New(transport, newNoopLogger())
	err := service.SendSubscriptionNotice(noticeBody(t, models.NoticeRenewed))
	assert.Error(t, err)
	transport.AssertExpectations(t)
}
