// internal/app/notifier.go
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/lecture"
	"lecture_coordinator_bot/internal/domain/roster"
	"lecture_coordinator_bot/internal/domain/whatsapp"
)

// Notifier fans a lecture update out to every enrolled student of its class.
// Per-recipient failures are logged and never abort the batch: a single
// unreachable student must not block the rest.
type Notifier interface {
	NotifyClass(ctx context.Context, l *lecture.Lecture, body string) error
	NotifyClassDocument(ctx context.Context, l *lecture.Lecture, mediaID, filename, caption string) error

	// SmartSend delivers one message to one recipient: free-form text while
	// the recipient's 24h session window is open, a template otherwise.
	SmartSend(ctx context.Context, u *roster.User, body string) error
}

type NotifierImpl struct {
	rosterRepo roster.Repository
	client     whatsapp.Client
	logger     *logrus.Logger
	location   *time.Location
	now        func() time.Time
}

func NewNotifierImpl(rr roster.Repository, client whatsapp.Client, logger *logrus.Logger, location *time.Location) *NotifierImpl {
	return &NotifierImpl{
		rosterRepo: rr,
		client:     client,
		logger:     logger,
		location:   location,
		now:        time.Now,
	}
}

func (n *NotifierImpl) NotifyClass(ctx context.Context, l *lecture.Lecture, body string) error {
	members, err := n.rosterRepo.ListClassMembers(ctx, l.ClassID)
	if err != nil {
		return err
	}
	delivered := 0
	for _, m := range members {
		if err := n.SmartSend(ctx, m, body); err != nil {
			n.logger.WithFields(logrus.Fields{
				"lecture_id": l.ID,
				"recipient":  m.WhatsAppNumber,
			}).Warn("Failed to deliver class update to one member: ", err)
			continue
		}
		delivered++
	}
	n.logger.WithFields(logrus.Fields{
		"lecture_id": l.ID,
		"class_id":   l.ClassID,
		"delivered":  delivered,
		"total":      len(members),
	}).Info("Class update fan-out finished.")
	return nil
}

func (n *NotifierImpl) NotifyClassDocument(ctx context.Context, l *lecture.Lecture, mediaID, filename, caption string) error {
	members, err := n.rosterRepo.ListClassMembers(ctx, l.ClassID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if _, err := n.client.SendDocument(ctx, m.WhatsAppNumber, mediaID, filename, caption); err != nil {
			n.logger.WithFields(logrus.Fields{
				"lecture_id": l.ID,
				"recipient":  m.WhatsAppNumber,
			}).Warn("Failed to deliver document to one member: ", err)
		}
	}
	return nil
}

func (n *NotifierImpl) SmartSend(ctx context.Context, u *roster.User, body string) error {
	chunks := chunkMessage(body)
	inSession := u.SessionActive(n.now())
	for _, chunk := range chunks {
		var err error
		if inSession {
			_, err = n.client.SendText(ctx, u.WhatsAppNumber, chunk)
		} else {
			_, err = n.client.SendTemplate(ctx, u.WhatsAppNumber, templateClassUpdate, []string{sanitizeTemplateParam(chunk)})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
