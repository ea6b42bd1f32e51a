// internal/app/broadcast_service.go
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/roster"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
)

// BroadcastService relays a class representative's messages and documents to
// the rest of the class.
type BroadcastService interface {
	HandleText(ctx context.Context, ev *event.Inbound, sender *roster.User) (bool, error)
	HandleDocument(ctx context.Context, ev *event.Inbound, sender *roster.User) (bool, error)
}

type BroadcastServiceImpl struct {
	rosterRepo roster.Repository
	ledger     event.Ledger
	notifier   Notifier
	client     domainWhatsApp.Client
	logger     *logrus.Logger
}

func NewBroadcastServiceImpl(
	rr roster.Repository,
	ledger event.Ledger,
	notifier Notifier,
	client domainWhatsApp.Client,
	logger *logrus.Logger,
) *BroadcastServiceImpl {
	return &BroadcastServiceImpl{
		rosterRepo: rr,
		ledger:     ledger,
		notifier:   notifier,
		client:     client,
		logger:     logger,
	}
}

func (s *BroadcastServiceImpl) HandleText(ctx context.Context, ev *event.Inbound, sender *roster.User) (bool, error) {
	if sender == nil || !sender.IsClassRep() || !sender.ClassID.Valid {
		return false, nil
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	members, err := s.rosterRepo.ListClassMembers(ctx, sender.ClassID.Int64)
	if err != nil {
		return true, fmt.Errorf("failed to load class roster: %w", err)
	}

	body := fmt.Sprintf("📢 *From your class rep %s*\n\n%s", sender.FirstName(), ev.Text)
	delivered := 0
	for _, m := range members {
		if m.ID == sender.ID {
			continue
		}
		if err := s.notifier.SmartSend(ctx, m, body); err != nil {
			s.logger.WithField("recipient", m.WhatsAppNumber).Warn("Failed to deliver broadcast to one member: ", err)
			continue
		}
		delivered++
	}

	sendInfo(ctx, s.client, s.logger, sender.WhatsAppNumber,
		fmt.Sprintf("Broadcast sent to %d classmates.", delivered))
	return true, nil
}

func (s *BroadcastServiceImpl) HandleDocument(ctx context.Context, ev *event.Inbound, sender *roster.User) (bool, error) {
	if sender == nil || !sender.IsClassRep() || !sender.ClassID.Valid || ev.Document == nil {
		return false, nil
	}

	if dup, err := recordInbound(ctx, s.ledger, s.logger, ev, 0); err != nil {
		return true, err
	} else if dup {
		return true, nil
	}

	members, err := s.rosterRepo.ListClassMembers(ctx, sender.ClassID.Int64)
	if err != nil {
		return true, fmt.Errorf("failed to load class roster: %w", err)
	}

	caption := ev.Document.Caption
	if caption == "" {
		caption = fmt.Sprintf("📄 Shared by your class rep %s", sender.FirstName())
	}
	delivered := 0
	for _, m := range members {
		if m.ID == sender.ID {
			continue
		}
		if _, err := s.client.SendDocument(ctx, m.WhatsAppNumber, ev.Document.MediaID, ev.Document.FileName, caption); err != nil {
			s.logger.WithField("recipient", m.WhatsAppNumber).Warn("Failed to deliver document to one member: ", err)
			continue
		}
		delivered++
	}

	sendInfo(ctx, s.client, s.logger, sender.WhatsAppNumber,
		fmt.Sprintf("Document sent to %d classmates.", delivered))
	return true, nil
}
