package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/support-service/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository keeps everything in process. A single mutex serializes
// every write, which gives the same all-or-nothing behaviour as the Mongo
// transactions.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]*models.Message
	byID     map[string]*models.Message
	ratings  map[string]*models.Rating
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]*models.Message),
		byID:     make(map[string]*models.Message),
		ratings:  make(map[string]*models.Rating),
	}
}

// Sessions

func (r *MemoryRepository) CreateSession(ctx context.Context, session *models.Session, welcome *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return models.ErrAlreadyExists
	}
	stored := cloneSession(session)
	r.sessions[session.ID] = stored
	if welcome != nil {
		r.appendLocked(stored, welcome)
	}
	*session = *cloneSession(stored)
	return nil
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Session
	for _, s := range r.sessions {
		if sessionMatches(s, filter) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return lastActivity(matched[i]).After(lastActivity(matched[j]))
	})

	total := int64(len(matched))
	matched = page(matched, filter.Offset, filter.Limit)

	out := make([]models.Session, 0, len(matched))
	for _, s := range matched {
		out = append(out, *cloneSession(s))
	}
	return out, total, nil
}

func (r *MemoryRepository) EndSession(ctx context.Context, id string, end models.SessionEnd, system *models.Message, rating *models.Rating) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return nil, models.ErrAlreadyEnded
	}
	if rating != nil {
		if _, exists := r.ratings[id]; exists {
			return nil, models.ErrAlreadySubmitted
		}
	}

	applyEnd(s, end)
	if system != nil {
		r.appendLocked(s, system)
	}
	if rating != nil {
		r.storeRatingLocked(s, rating)
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) TimeoutSession(ctx context.Context, id string, cutoff time.Time, end models.SessionEnd, system *models.Message) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return nil, models.ErrAlreadyEnded
	}
	if !lastActivity(s).Before(cutoff) {
		return nil, models.ErrSessionFresh
	}

	applyEnd(s, end)
	if system != nil {
		r.appendLocked(s, system)
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Session
	for _, s := range r.sessions {
		if s.Status == models.StatusActive && lastActivity(s).Before(cutoff) {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(&out[i]).Before(lastActivity(&out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) AssignAdmin(ctx context.Context, id string, assignment models.Assignment, system *models.Message) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return nil, models.ErrSessionNotActive
	}
	a := assignment
	s.AssignedAdmin = &a
	s.UpdatedAt = assignment.AssignedAt
	if system != nil {
		r.appendLocked(s, system)
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) Escalate(ctx context.Context, id string, escalation models.Escalation, system *models.Message) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return nil, models.ErrSessionNotActive
	}
	at := escalation.At
	s.Escalated = true
	s.EscalationReason = escalation.Reason
	s.EscalatedAt = &at
	s.Priority = models.PriorityUrgent
	s.UpdatedAt = at
	if system != nil {
		r.appendLocked(s, system)
	}
	return cloneSession(s), nil
}

func (r *MemoryRepository) AddTag(ctx context.Context, id, tag string, at time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	for _, t := range s.Tags {
		if t == tag {
			return cloneSession(s), nil
		}
	}
	s.Tags = append(s.Tags, tag)
	s.UpdatedAt = at
	return cloneSession(s), nil
}

func (r *MemoryRepository) AddNote(ctx context.Context, id string, note models.AdminNote) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	s.AdminNotes = append(s.AdminNotes, note)
	s.UpdatedAt = note.CreatedAt
	return cloneSession(s), nil
}

// Messages

func (r *MemoryRepository) AppendMessage(ctx context.Context, msg *models.Message) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[msg.SessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if !msg.IsSystemMessage && s.Status != models.StatusActive {
		return nil, models.ErrSessionNotActive
	}
	if _, exists := r.byID[msg.ID]; exists {
		return nil, models.ErrAlreadyExists
	}
	r.appendLocked(s, msg)
	return cloneSession(s), nil
}

func (r *MemoryRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, q models.MessageQuery) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var visible []*models.Message
	for _, m := range r.messages[q.SessionID] {
		if m.Deleted && !q.IncludeDeleted {
			continue
		}
		if q.After != nil && !afterCursor(m, *q.After, q.AfterID) {
			continue
		}
		visible = append(visible, m)
	}
	sort.SliceStable(visible, func(i, j int) bool { return messageLess(visible[i], visible[j]) })

	if q.Limit > 0 && len(visible) > q.Limit {
		if q.After == nil {
			visible = visible[len(visible)-q.Limit:]
		} else {
			visible = visible[:q.Limit]
		}
	}

	out := make([]models.Message, 0, len(visible))
	for _, m := range visible {
		out = append(out, *cloneMessage(m))
	}
	return out, nil
}

func (r *MemoryRepository) SoftDeleteMessage(ctx context.Context, id, deletedBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return models.ErrMessageNotFound
	}
	if m.Deleted {
		return nil
	}
	m.Deleted = true
	m.DeletedAt = &at
	m.DeletedBy = deletedBy
	return nil
}

func (r *MemoryRepository) MarkMessages(ctx context.Context, upd models.StatusUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[string]struct{}, len(upd.IDs))
	for _, id := range upd.IDs {
		ids[id] = struct{}{}
	}

	var n int64
	for _, m := range r.messages[upd.SessionID] {
		if m.Sender != upd.Sender || m.IsSystemMessage {
			continue
		}
		if len(ids) > 0 {
			if _, ok := ids[m.ID]; !ok {
				continue
			}
		}
		if !statusAdvances(m.Status, upd.Status) {
			continue
		}
		at := upd.At
		switch upd.Status {
		case models.DeliveryDelivered:
			m.DeliveredAt = &at
		case models.DeliveryRead:
			if m.DeliveredAt == nil {
				m.DeliveredAt = &at
			}
			m.ReadAt = &at
		}
		m.Status = upd.Status
		n++
	}
	return n, nil
}

// Ratings

func (r *MemoryRepository) CreateRating(ctx context.Context, rating *models.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[rating.SessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	if _, exists := r.ratings[rating.SessionID]; exists {
		return models.ErrAlreadySubmitted
	}
	r.storeRatingLocked(s, rating)
	return nil
}

func (r *MemoryRepository) GetRatingBySession(ctx context.Context, sessionID string) (*models.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.ratings[sessionID]
	if !ok {
		return nil, models.ErrRatingNotFound
	}
	c := *rt
	c.Tags = append([]string(nil), rt.Tags...)
	return &c, nil
}

func (r *MemoryRepository) ListRatings(ctx context.Context, filter models.RatingFilter) ([]models.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Rating
	for _, rt := range r.ratings {
		if !filter.From.IsZero() && rt.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rt.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.AdminID != "" && rt.AdminID != filter.AdminID {
			continue
		}
		c := *rt
		c.Tags = append([]string(nil), rt.Tags...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// helpers; callers hold r.mu

func (r *MemoryRepository) appendLocked(s *models.Session, msg *models.Message) {
	stored := cloneMessage(msg)
	r.messages[s.ID] = append(r.messages[s.ID], stored)
	r.byID[stored.ID] = stored
	applyCounters(s, stored)
}

func (r *MemoryRepository) storeRatingLocked(s *models.Session, rating *models.Rating) {
	if rating.ID.IsZero() {
		rating.ID = primitive.NewObjectID()
	}
	stored := *rating
	stored.Tags = append([]string(nil), rating.Tags...)
	r.ratings[s.ID] = &stored

	score := rating.Score
	s.Rating = &score
	s.Feedback = rating.Feedback
	s.UpdatedAt = rating.CreatedAt
}

func applyCounters(s *models.Session, msg *models.Message) {
	at := msg.CreatedAt
	s.MessageCount++
	if s.LastMessageAt == nil || at.After(*s.LastMessageAt) {
		s.LastMessageAt = &at
	}
	if !msg.IsSystemMessage {
		switch msg.Sender {
		case models.SenderUser:
			if s.LastUserMessageAt == nil || at.After(*s.LastUserMessageAt) {
				s.LastUserMessageAt = &at
			}
		case models.SenderAdmin:
			if s.LastAdminMessageAt == nil || at.After(*s.LastAdminMessageAt) {
				s.LastAdminMessageAt = &at
			}
		}
	}
	if at.After(s.UpdatedAt) {
		s.UpdatedAt = at
	}
}

func applyEnd(s *models.Session, end models.SessionEnd) {
	endedAt := end.EndedAt
	duration := end.DurationSeconds
	s.Status = end.Status
	s.EndedAt = &endedAt
	s.DurationSeconds = &duration
	s.EndReason = end.Reason
	s.EndedBy = end.EndedBy
	s.UpdatedAt = endedAt
}

func sessionMatches(s *models.Session, f models.SessionFilter) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Priority != "" && s.Priority != f.Priority {
		return false
	}
	if f.AssignedAdmin != "" && (s.AssignedAdmin == nil || s.AssignedAdmin.AdminID != f.AssignedAdmin) {
		return false
	}
	if f.Unassigned && s.AssignedAdmin != nil {
		return false
	}
	if f.EscalatedOnly && !s.Escalated {
		return false
	}
	if f.StartedAfter != nil && s.StartedAt.Before(*f.StartedAfter) {
		return false
	}
	return true
}

func lastActivity(s *models.Session) time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.StartedAt
}

func messageLess(a, b *models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// afterCursor matches messageLess: a message sharing the cursor's timestamp is
// still after it when its id sorts higher.
func afterCursor(m *models.Message, at time.Time, id string) bool {
	if m.CreatedAt.Equal(at) {
		return id != "" && m.ID > id
	}
	return m.CreatedAt.After(at)
}

func statusRank(s models.DeliveryStatus) int {
	switch s {
	case models.DeliveryDelivered:
		return 1
	case models.DeliveryRead:
		return 2
	default:
		return 0
	}
}

func statusAdvances(from, to models.DeliveryStatus) bool {
	return statusRank(to) > statusRank(from)
}

func page(in []*models.Session, offset, limit int) []*models.Session {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.AdminNotes = append([]models.AdminNote(nil), s.AdminNotes...)
	if s.AssignedAdmin != nil {
		a := *s.AssignedAdmin
		c.AssignedAdmin = &a
	}
	return &c
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.Attachments = append([]models.Attachment(nil), m.Attachments...)
	return &c
}
