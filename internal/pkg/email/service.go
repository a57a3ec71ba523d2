package email

import (
	"bytes"
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier is the outbound notification boundary. Delivery is
// fire-and-forget: failures are logged and never surface to the caller.
type Notifier interface {
	Notify(event Event)
}

// Event names understood by the notification service
const (
	EventDepositCompleted      = "deposit_completed"
	EventTransferSent          = "transfer_sent"
	EventTransferReceived      = "transfer_received"
	EventWithdrawalInitiated   = "withdrawal_initiated"
	EventWithdrawalFailed      = "withdrawal_failed"
	EventSubscriptionActivated = "subscription_activated"
	EventCommissionEarned      = "commission_earned"
)

// Event is a queued notification
type Event struct {
	Type        string
	To          string
	ToName      string
	Amount      string
	Currency    string
	Reference   string
	Counterpart string
	Fee         string
	Plan        string
}

// Service handles notification emails with templates and an async worker
type Service struct {
	client    *SendGridClient
	templates map[string]*template.Template
	queue     chan Event
	wg        sync.WaitGroup
	done      chan struct{}
}

var eventSubjects = map[string]string{
	EventDepositCompleted:      "Deposit confirmed",
	EventTransferSent:          "Transfer sent",
	EventTransferReceived:      "You received a transfer",
	EventWithdrawalInitiated:   "Withdrawal in progress",
	EventWithdrawalFailed:      "Withdrawal failed",
	EventSubscriptionActivated: "Subscription activated",
	EventCommissionEarned:      "Referral commission earned",
}

// NewService creates the notification service and starts its worker
func NewService(config SendGridConfig) *Service {
	s := &Service{
		client:    NewSendGridClient(config),
		templates: make(map[string]*template.Template),
		queue:     make(chan Event, 100),
		done:      make(chan struct{}),
	}

	s.loadTemplates()

	s.wg.Add(1)
	go s.worker()

	return s
}

func (s *Service) loadTemplates() {
	bodies := map[string]string{
		EventDepositCompleted:      DepositCompletedTemplate,
		EventTransferSent:          TransferSentTemplate,
		EventTransferReceived:      TransferReceivedTemplate,
		EventWithdrawalInitiated:   WithdrawalInitiatedTemplate,
		EventWithdrawalFailed:      WithdrawalFailedTemplate,
		EventSubscriptionActivated: SubscriptionActivatedTemplate,
		EventCommissionEarned:      CommissionEarnedTemplate,
	}

	for name, body := range bodies {
		tmpl, err := template.New(name).Parse(BaseTemplate)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse base template")
			continue
		}
		if _, err := tmpl.Parse(body); err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

// Notify queues an event for delivery. Never blocks the ledger path: if the
// queue is full the event is dropped with a warning.
func (s *Service) Notify(event Event) {
	if event.To == "" {
		return
	}
	select {
	case s.queue <- event:
	default:
		log.Warn().Str("event", event.Type).Msg("Notification queue full, dropping event")
	}
}

// Close drains the queue and stops the worker
func (s *Service) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.queue:
			s.deliver(event)
		case <-s.done:
			// drain whatever is left
			for {
				select {
				case event := <-s.queue:
					s.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) deliver(event Event) {
	tmpl, ok := s.templates[event.Type]
	if !ok {
		log.Warn().Str("event", event.Type).Msg("No template for notification event")
		return
	}

	type templateData struct {
		Name        string
		Amount      string
		Currency    string
		Reference   string
		Counterpart string
		Fee         string
		Plan        string
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, templateData{
		Name:        event.ToName,
		Amount:      event.Amount,
		Currency:    event.Currency,
		Reference:   event.Reference,
		Counterpart: event.Counterpart,
		Fee:         event.Fee,
		Plan:        event.Plan,
	})
	if err != nil {
		log.Error().Err(err).Str("event", event.Type).Msg("Failed to render notification email")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg := &EmailMessage{
		To:          event.To,
		ToName:      event.ToName,
		Subject:     eventSubjects[event.Type],
		HTMLContent: buf.String(),
	}
	if err := s.client.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("event", event.Type).Str("to", event.To).Msg("Failed to send notification email")
	}
}
