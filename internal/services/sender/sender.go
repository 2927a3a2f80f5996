// Package sender отправляет пользователям почтовые уведомления о состоянии
// подписки, потребляя сообщения из брокера.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Service отправляет письма по сообщениям из очереди уведомлений.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// SendSubscriptionNotice разбирает сообщение очереди и отправляет письмо,
// соответствующее виду уведомления.
func (s *Service) SendSubscriptionNotice(body []byte) error {
	var message models.NoticeMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	var subject, bodyText string
	switch message.Kind {
	case models.NoticeRenewed:
		subject = "Подписка продлена"
		bodyText = fmt.Sprintf("Здравствуйте, %s!\n\nВаша подписка «%s» автоматически продлена на 30 дней. Стоимость тарифа списана с вашего баланса.",
			message.Username, message.PlanName)
	case models.NoticeExpired:
		subject = "Подписка истекла"
		bodyText = fmt.Sprintf("Здравствуйте, %s!\n\nНа вашем балансе не хватило средств для продления подписки «%s». Установлен базовый тариф.\n\nПополните баланс и оформите подписку заново.",
			message.Username, message.PlanName)
	case models.NoticeExpiringSoon:
		subject = "Подписка истекает завтра"
		bodyText = fmt.Sprintf("Здравствуйте, %s!\n\nВаша подписка «%s» заканчивается в течение суток. Пополните баланс заранее, чтобы она продлилась автоматически.",
			message.Username, message.PlanName)
	default:
		s.log.Warn("unknown notice kind", slog.String("kind", message.Kind))
		return fmt.Errorf("unknown notice kind: %s", message.Kind)
	}

	if err := s.sendEmail([]string{message.Email}, subject, bodyText); err != nil {
		return err
	}
	metrics.IncNoticeSent(message.Kind)
	return nil
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
