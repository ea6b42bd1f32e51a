// internal/app/stubs_test.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"lecture_coordinator_bot/internal/domain/event"
	"lecture_coordinator_bot/internal/domain/lecture"
	"lecture_coordinator_bot/internal/domain/pending"
	"lecture_coordinator_bot/internal/domain/prompt"
	"lecture_coordinator_bot/internal/domain/roster"
	"lecture_coordinator_bot/internal/domain/whatsapp"
	idb "lecture_coordinator_bot/internal/infra/database"
)

// ---- lecture repository stub ----

type stubLectureRepo struct {
	mu       sync.Mutex
	lectures map[int64]*lecture.Lecture

	// afterSetResponse, when set, runs after SetLecturerResponse releases
	// the lock. Used to force interleavings in concurrency tests.
	afterSetResponse func()
}

func newStubLectureRepo(lectures ...*lecture.Lecture) *stubLectureRepo {
	m := make(map[int64]*lecture.Lecture, len(lectures))
	for _, l := range lectures {
		m[l.ID] = l
	}
	return &stubLectureRepo{lectures: m}
}

func (r *stubLectureRepo) GetByID(_ context.Context, id int64) (*lecture.Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return nil, idb.ErrLectureNotFound
	}
	cp := *l
	cp.Lecturers = append([]lecture.Lecturer(nil), l.Lecturers...)
	cp.Notes = append([]lecture.Note(nil), l.Notes...)
	cp.Documents = append([]lecture.Document(nil), l.Documents...)
	return &cp, nil
}

func (r *stubLectureRepo) ListByClassBetween(_ context.Context, classID int64, from, to time.Time) ([]*lecture.Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*lecture.Lecture
	for _, l := range r.lectures {
		if l.ClassID == classID && !l.StartTime.Before(from) && !l.StartTime.After(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *stubLectureRepo) ListStartingBetween(_ context.Context, from, to time.Time) ([]*lecture.Lecture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*lecture.Lecture
	for _, l := range r.lectures {
		if !l.StartTime.Before(from) && !l.StartTime.After(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *stubLectureRepo) Update(_ context.Context, l *lecture.Lecture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.lectures[l.ID]
	if !ok {
		return idb.ErrLectureNotFound
	}
	stored.Course = l.Course
	stored.Location = l.Location
	stored.Description = l.Description
	stored.StartTime = l.StartTime
	stored.EndTime = l.EndTime
	stored.Status = l.Status
	return nil
}

func (r *stubLectureRepo) UpdateStatus(_ context.Context, id int64, status lecture.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return idb.ErrLectureNotFound
	}
	l.Status = status
	return nil
}

func (r *stubLectureRepo) UpdateTimes(_ context.Context, id int64, start, end time.Time, status lecture.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return idb.ErrLectureNotFound
	}
	l.StartTime, l.EndTime, l.Status = start, end, status
	return nil
}

func (r *stubLectureRepo) SetLecturerResponse(_ context.Context, lectureID int64, phone string, response lecture.Response) (bool, error) {
	r.mu.Lock()
	l, ok := r.lectures[lectureID]
	if !ok {
		r.mu.Unlock()
		return false, idb.ErrLectureNotFound
	}
	won := false
	for i := range l.Lecturers {
		e := &l.Lecturers[i]
		if e.WhatsApp == phone && e.Response == lecture.ResponsePending {
			e.Response = response
			won = true
			break
		}
	}
	r.mu.Unlock()
	if r.afterSetResponse != nil {
		r.afterSetResponse()
	}
	return won, nil
}

func (r *stubLectureRepo) ConfirmIfUnlocked(_ context.Context, id int64, confirmedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return false, idb.ErrLectureNotFound
	}
	if l.Locked {
		return false, nil
	}
	l.Locked = true
	l.Status = lecture.StatusConfirmed
	l.ConfirmedBy.String, l.ConfirmedBy.Valid = confirmedBy, true
	return true, nil
}

func (r *stubLectureRepo) CancelIfNotCancelled(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return false, idb.ErrLectureNotFound
	}
	if l.Status == lecture.StatusCancelled {
		return false, nil
	}
	l.Status = lecture.StatusCancelled
	return true, nil
}

func (r *stubLectureRepo) UpdateLecturerName(_ context.Context, lectureID, entryID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[lectureID]
	if !ok {
		return idb.ErrLectureNotFound
	}
	for i := range l.Lecturers {
		if l.Lecturers[i].ID == entryID {
			l.Lecturers[i].Name = name
			return nil
		}
	}
	return idb.ErrLecturerEntryNotFound
}

func (r *stubLectureRepo) MarkAnnouncedIfUnannounced(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return false, idb.ErrLectureNotFound
	}
	if l.Announcement.Sent {
		return false, nil
	}
	l.Announcement.Sent = true
	l.Status = lecture.StatusOngoing
	return true, nil
}

func (r *stubLectureRepo) AddNote(_ context.Context, n *lecture.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[n.LectureID]
	if !ok {
		return idb.ErrLectureNotFound
	}
	n.ID = int64(len(l.Notes) + 1)
	l.Notes = append(l.Notes, *n)
	return nil
}

func (r *stubLectureRepo) AddDocument(_ context.Context, d *lecture.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[d.LectureID]
	if !ok {
		return idb.ErrLectureNotFound
	}
	d.ID = int64(len(l.Documents) + 1)
	l.Documents = append(l.Documents, *d)
	return nil
}

func (r *stubLectureRepo) MarkLecturerReminded(_ context.Context, lectureID int64, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[lectureID]
	if !ok {
		return idb.ErrLectureNotFound
	}
	for i := range l.Lecturers {
		if l.Lecturers[i].WhatsApp == phone {
			l.Lecturers[i].ReminderSent = true
			return nil
		}
	}
	return idb.ErrLecturerEntryNotFound
}

func (r *stubLectureRepo) SetReminderRecord(_ context.Context, id int64, via string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lectures[id]
	if !ok {
		return idb.ErrLectureNotFound
	}
	l.Reminder.Sent = true
	l.Reminder.SentVia.String, l.Reminder.SentVia.Valid = via, true
	return nil
}

// ---- roster repository stub ----

type stubRosterRepo struct {
	usersByPhone map[string]*roster.User
	classes      map[int64]*roster.Class
	touched      []string
}

func newStubRosterRepo() *stubRosterRepo {
	return &stubRosterRepo{
		usersByPhone: make(map[string]*roster.User),
		classes:      make(map[int64]*roster.Class),
	}
}

func (r *stubRosterRepo) addUser(u *roster.User) { r.usersByPhone[u.WhatsAppNumber] = u }

func (r *stubRosterRepo) GetUserByWhatsApp(_ context.Context, phone string) (*roster.User, error) {
	u, ok := r.usersByPhone[phone]
	if !ok {
		return nil, idb.ErrUserNotFound
	}
	return u, nil
}

func (r *stubRosterRepo) CreateUser(_ context.Context, u *roster.User) error {
	if _, exists := r.usersByPhone[u.WhatsAppNumber]; exists {
		return idb.ErrDuplicateWhatsAppNumber
	}
	u.ID = int64(len(r.usersByPhone) + 1)
	r.usersByPhone[u.WhatsAppNumber] = u
	return nil
}

func (r *stubRosterRepo) UpdateUser(_ context.Context, u *roster.User) error {
	r.usersByPhone[u.WhatsAppNumber] = u
	return nil
}

func (r *stubRosterRepo) ListClassMembers(_ context.Context, classID int64) ([]*roster.User, error) {
	var out []*roster.User
	for _, u := range r.usersByPhone {
		if u.ClassID.Valid && u.ClassID.Int64 == classID && u.OnboardingStep == roster.StepComplete {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubRosterRepo) ListUsersWithClass(_ context.Context) ([]*roster.User, error) {
	var out []*roster.User
	for _, u := range r.usersByPhone {
		if u.ClassID.Valid && u.OnboardingStep == roster.StepComplete {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubRosterRepo) GetClassByID(_ context.Context, id int64) (*roster.Class, error) {
	c, ok := r.classes[id]
	if !ok {
		return nil, idb.ErrClassNotFound
	}
	return c, nil
}

func (r *stubRosterRepo) TouchSession(_ context.Context, phone string) error {
	r.touched = append(r.touched, phone)
	return nil
}

func studentUser(phone string, classID int64) *roster.User {
	return &roster.User{
		FullName:       "Student " + phone,
		WhatsAppNumber: phone,
		Role:           roster.RoleStudent,
		ClassID:        sql.NullInt64{Int64: classID, Valid: true},
		OnboardingStep: roster.StepComplete,
		LastMessageAt:  sql.NullTime{Time: time.Now(), Valid: true},
	}
}

// ---- prompt repository stub ----

type stubPromptRepo struct {
	prompts map[string]*prompt.Prompt
}

func newStubPromptRepo(prompts ...*prompt.Prompt) *stubPromptRepo {
	m := make(map[string]*prompt.Prompt, len(prompts))
	for _, p := range prompts {
		m[p.MessageID] = p
	}
	return &stubPromptRepo{prompts: m}
}

func (r *stubPromptRepo) Record(_ context.Context, p *prompt.Prompt) error {
	if _, exists := r.prompts[p.MessageID]; exists {
		return idb.ErrDuplicatePrompt
	}
	r.prompts[p.MessageID] = p
	return nil
}

func (r *stubPromptRepo) GetByMessageID(_ context.Context, messageID string) (*prompt.Prompt, error) {
	p, ok := r.prompts[messageID]
	if !ok {
		return nil, idb.ErrPromptNotFound
	}
	return p, nil
}

func (r *stubPromptRepo) MarkHandledIfUnhandled(_ context.Context, messageID string) (bool, error) {
	p, ok := r.prompts[messageID]
	if !ok || p.DecisionHandled {
		return false, nil
	}
	p.DecisionHandled = true
	return true, nil
}

// ---- idempotency ledger stub ----

type stubLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newStubLedger() *stubLedger { return &stubLedger{seen: make(map[string]bool)} }

func (l *stubLedger) Record(_ context.Context, p *event.Processed) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[p.EventID] {
		return idb.ErrDuplicateEvent
	}
	l.seen[p.EventID] = true
	return nil
}

// ---- pending action tracker stub ----

type stubTracker struct {
	actions  map[int64]*pending.Action
	nextID   int64
	narrowed []pending.ActionKind
	closed   []int64
}

func newStubTracker() *stubTracker { return &stubTracker{actions: make(map[int64]*pending.Action)} }

func (t *stubTracker) Create(_ context.Context, a *pending.Action) error {
	t.nextID++
	a.ID = t.nextID
	t.actions[a.ID] = a
	return nil
}

func (t *stubTracker) CreateFocused(_ context.Context, a *pending.Action) error {
	for _, other := range t.actions {
		if other.LecturerWhatsApp == a.LecturerWhatsApp {
			other.Active = false
		}
	}
	t.nextID++
	a.ID = t.nextID
	a.Status = pending.StatusPending
	a.Active = true
	a.CreatedAt = time.Now()
	t.actions[a.ID] = a
	return nil
}

func (t *stubTracker) Resolve(_ context.Context, actor, replyTo string) (*pending.Action, error) {
	if replyTo != "" {
		for _, a := range t.actions {
			if a.PromptID == replyTo && a.Status == pending.StatusPending {
				return a, nil
			}
		}
	}
	for _, a := range t.actions {
		if a.LecturerWhatsApp == actor && a.Status == pending.StatusPending && a.Active {
			return a, nil
		}
	}
	var newest *pending.Action
	for _, a := range t.actions {
		if a.LecturerWhatsApp == actor && a.Status == pending.StatusPending {
			if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
				newest = a
			}
		}
	}
	if newest == nil {
		return nil, idb.ErrPendingActionNotFound
	}
	return newest, nil
}

func (t *stubTracker) GetByPromptID(_ context.Context, promptID string) (*pending.Action, error) {
	for _, a := range t.actions {
		if a.PromptID == promptID {
			return a, nil
		}
	}
	return nil, idb.ErrPendingActionNotFound
}

func (t *stubTracker) HasPending(_ context.Context, actor string) (bool, error) {
	for _, a := range t.actions {
		if a.LecturerWhatsApp == actor && a.Status == pending.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *stubTracker) Narrow(_ context.Context, id int64, kind pending.ActionKind) error {
	a, ok := t.actions[id]
	if !ok {
		return idb.ErrPendingActionNotFound
	}
	a.Kind = kind
	t.narrowed = append(t.narrowed, kind)
	return nil
}

func (t *stubTracker) Close(_ context.Context, id int64) error {
	a, ok := t.actions[id]
	if !ok {
		return idb.ErrPendingActionNotFound
	}
	a.Status = pending.StatusClosed
	a.Active = false
	t.closed = append(t.closed, id)
	return nil
}

func (t *stubTracker) Deactivate(_ context.Context, id int64) error {
	a, ok := t.actions[id]
	if !ok {
		return idb.ErrPendingActionNotFound
	}
	a.Active = false
	return nil
}

// ---- outbound transport stub ----

type sentMessage struct {
	To      string
	Body    string
	Buttons []whatsapp.Button
}

type sentTemplate struct {
	To       string
	Template string
	Params   []string
}

type sentDocument struct {
	To       string
	MediaID  string
	FileName string
	Caption  string
}

type stubClient struct {
	mu        sync.Mutex
	texts     []sentMessage
	templates []sentTemplate
	documents []sentDocument
	nextID    int
	failFor   map[string]bool // recipients whose sends fail
}

func newStubClient() *stubClient { return &stubClient{failFor: make(map[string]bool)} }

func (c *stubClient) SendText(_ context.Context, to, body string, buttons ...whatsapp.Button) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[to] {
		return "", fmt.Errorf("delivery to %s failed", to)
	}
	c.texts = append(c.texts, sentMessage{To: to, Body: body, Buttons: buttons})
	c.nextID++
	return fmt.Sprintf("wamid.out.%d", c.nextID), nil
}

func (c *stubClient) SendTemplate(_ context.Context, to, templateName string, params []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[to] {
		return "", fmt.Errorf("delivery to %s failed", to)
	}
	c.templates = append(c.templates, sentTemplate{To: to, Template: templateName, Params: params})
	c.nextID++
	return fmt.Sprintf("wamid.out.%d", c.nextID), nil
}

func (c *stubClient) SendDocument(_ context.Context, to, mediaID, filename, caption string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[to] {
		return "", fmt.Errorf("delivery to %s failed", to)
	}
	c.documents = append(c.documents, sentDocument{To: to, MediaID: mediaID, FileName: filename, Caption: caption})
	c.nextID++
	return fmt.Sprintf("wamid.out.%d", c.nextID), nil
}

func (c *stubClient) textsTo(to string) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, m := range c.texts {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
