// internal/app/dispatcher.go
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/roster"
	domainWhatsApp "lecture_coordinator_bot/internal/domain/whatsapp"
	idb "lecture_coordinator_bot/internal/infra/database"
)

// Dispatcher routes each inbound event to exactly one handler, checking
// domain preconditions (a correlating prompt, a pending action, the sender's
// role) rather than surface type alone, so no handler swallows another's
// input. Handlers are tried in priority order and the first to claim the
// event short-circuits the rest.
//
// Errors never propagate out of HandleInbound: the webhook must stay a 200
// regardless, or the transport starts a retry storm.
type Dispatcher struct {
	rosterRepo   roster.Repository
	enrollment   EnrollmentService
	schedule     ScheduleService
	contribution ContributionService
	broadcast    BroadcastService
	decision     DecisionService
	logger       *logrus.Logger
}

func NewDispatcher(
	rr roster.Repository,
	enrollment EnrollmentService,
	schedule ScheduleService,
	contribution ContributionService,
	broadcast BroadcastService,
	decision DecisionService,
	logger *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		rosterRepo:   rr,
		enrollment:   enrollment,
		schedule:     schedule,
		contribution: contribution,
		broadcast:    broadcast,
		decision:     decision,
		logger:       logger,
	}
}

func (d *Dispatcher) HandleInbound(ctx context.Context, ev *event.Inbound) {
	log := d.logger.WithFields(logrus.Fields{"event_id": ev.ID, "kind": ev.Kind})

	sender := domainWhatsApp.ToLocal(ev.From)
	if err := d.rosterRepo.TouchSession(ctx, sender); err != nil {
		log.Warn("Failed to touch sender session: ", err)
	}

	user, err := d.rosterRepo.GetUserByWhatsApp(ctx, sender)
	if err != nil && err != idb.ErrUserNotFound {
		log.Error("Failed to look up sender: ", err)
		return
	}

	switch ev.Kind {
	case event.KindText:
		d.routeText(ctx, ev, user, log)
	case event.KindButton, event.KindInteractiveButton:
		d.routeButton(ctx, ev, user, log)
	case event.KindFormReply:
		if err := d.decision.HandleRescheduleSubmission(ctx, ev); err != nil {
			log.Error("Reschedule submission failed: ", err)
		}
	case event.KindDocument:
		d.routeDocument(ctx, ev, user, log)
	default:
		log.Debug("Dropping event of unhandled kind.")
	}
}

func (d *Dispatcher) routeText(ctx context.Context, ev *event.Inbound, user *roster.User, log *logrus.Entry) {
	if d.enrollment.IsJoinCommand(ev.Text) {
		if err := d.enrollment.HandleJoin(ctx, ev, user); err != nil {
			log.Error("Join flow failed: ", err)
		}
		return
	}
	if user != nil && user.OnboardingStep != roster.StepComplete {
		if err := d.enrollment.HandleOnboarding(ctx, ev, user); err != nil {
			log.Error("Onboarding flow failed: ", err)
		}
		return
	}
	if d.schedule.IsScheduleKeyword(ev.Text) {
		if err := d.schedule.HandleKeywordSummary(ctx, ev, user); err != nil {
			log.Error("Schedule summary failed: ", err)
		}
		return
	}
	if claimed, err := d.contribution.Handle(ctx, ev); err != nil {
		log.Error("Contribution handling failed: ", err)
		return
	} else if claimed {
		return
	}
	if claimed, err := d.broadcast.HandleText(ctx, ev, user); err != nil {
		log.Error("Broadcast handling failed: ", err)
		return
	} else if claimed {
		return
	}
	log.Debug("Text event claimed by no handler; dropping.")
}

func (d *Dispatcher) routeButton(ctx context.Context, ev *event.Inbound, user *roster.User, log *logrus.Entry) {
	if claimed, err := d.decision.HandleLecturerButton(ctx, ev); err != nil {
		log.Error("Lecturer decision failed: ", err)
		return
	} else if claimed {
		return
	}
	if claimed, err := d.contribution.HandleChoiceButton(ctx, ev); err != nil {
		log.Error("Contribution choice failed: ", err)
		return
	} else if claimed {
		return
	}
	if claimed, err := d.schedule.HandleViewSchedule(ctx, ev, user); err != nil {
		log.Error("View-schedule handling failed: ", err)
		return
	} else if claimed {
		return
	}
	log.Debug("Button event claimed by no handler; dropping.")
}

func (d *Dispatcher) routeDocument(ctx context.Context, ev *event.Inbound, user *roster.User, log *logrus.Entry) {
	if user != nil && user.IsClassRep() {
		if claimed, err := d.broadcast.HandleDocument(ctx, ev, user); err != nil {
			log.Error("Document broadcast failed: ", err)
			return
		} else if claimed {
			return
		}
	}
	if claimed, err := d.contribution.Handle(ctx, ev); err != nil {
		log.Error("Document contribution failed: ", err)
		return
	} else if claimed {
		return
	}
	log.Debug("Document event claimed by no handler; dropping.")
}
