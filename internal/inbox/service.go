package inbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/ids"
	"github.com/fyrsmithlabs/folio/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/folio/internal/inbox"

// Demo content used by CreateTestConversation and SimulateOwnerReply.
const (
	DemoVisitorName  = "Recruiter (Demo)"
	DemoVisitorToken = "demo-token"
	DemoMessage      = "Hi! I'm a recruiter from TechCorp. Are you open to new roles?"
	DemoReply        = "Thanks for reaching out! I'll get back to you shortly. (This is an automated demo reply)"
)

// Config tunes the service's external-call budgets.
type Config struct {
	// ClassifyTimeout bounds the spam check. On expiry the message is
	// treated as not spam.
	ClassifyTimeout time.Duration
	// WriteTimeout bounds each repository write.
	WriteTimeout time.Duration
	// ReplyDelay is the wait before a simulated owner reply.
	ReplyDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReplyDelay <= 0 {
		c.ReplyDelay = 1500 * time.Millisecond
	}
}

// AppendRequest describes one message to append.
type AppendRequest struct {
	// ConversationID targets an existing thread. Ignored if unknown.
	ConversationID string
	Body           string
	Sender         SenderType
	// VisitorToken is the caller's browser session token.
	VisitorToken string
	Visitor      *VisitorDetails
}

// Service owns the in-memory conversation collection. Exactly one
// Repository is authoritative at a time; the local repository doubles as
// a cache while a replicated one is active.
type Service struct {
	local      *LocalRepository
	classifier Classifier
	logger     *logging.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	cfg        Config
	now        func() time.Time

	locks *keyedMutex

	// persistMu orders local snapshot writes so the newest one lands last.
	persistMu sync.Mutex

	mu          sync.RWMutex
	convs       []Conversation
	repo        Repository
	generation  uint64
	watchCancel context.CancelFunc
	subs        map[int]func([]Conversation)
	nextSub     int
}

// NewService creates a service backed by local. classifier may be nil, in
// which case no message is ever flagged.
func NewService(local *LocalRepository, classifier Classifier, logger *zap.Logger, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		local:      local,
		classifier: classifier,
		logger:     logging.Wrap(logger),
		metrics:    NewMetrics(),
		tracer:     otel.Tracer(instrumentationName),
		cfg:        cfg,
		now:        time.Now,
		locks:      newKeyedMutex(),
		repo:       local,
		subs:       make(map[int]func([]Conversation)),
	}
}

// Load reads the local collection into memory. Unreadable data is logged
// and replaced by an empty collection.
func (s *Service) Load(ctx context.Context) {
	convs, err := s.local.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to load conversations, starting empty", zap.Error(err))
		convs = nil
	}
	s.mu.Lock()
	s.convs = convs
	s.mu.Unlock()
	s.metrics.Conversations.Set(float64(len(convs)))
}

// Mode reports which backend is authoritative.
func (s *Service) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.Mode()
}

// SetRepository makes repo authoritative. A nil repo selects local
// storage. Any previous watcher is stopped and a non-local previous
// repository is closed.
func (s *Service) SetRepository(repo Repository) {
	if repo == nil {
		repo = s.local
	}

	s.mu.Lock()
	old := s.repo
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	s.repo = repo
	s.generation++
	gen := s.generation
	var watchCtx context.Context
	src, watches := repo.(SnapshotSource)
	if watches {
		watchCtx, s.watchCancel = context.WithCancel(context.Background())
	}
	s.mu.Unlock()

	bg := context.Background()
	if old != nil && old != Repository(s.local) && old != repo {
		if err := old.Close(); err != nil {
			s.logger.Warn(bg, "closing previous repository", zap.Error(err))
		}
	}

	s.logger.Info(bg, "conversation repository selected", zap.String("mode", string(repo.Mode())))

	if !watches {
		if repo != Repository(s.local) {
			return
		}
		// Local becomes authoritative again with whatever we last saw.
		ctx, cancel := context.WithTimeout(bg, s.cfg.WriteTimeout)
		defer cancel()
		if err := s.persistLocal(ctx); err != nil {
			s.logger.Error(ctx, "failed to persist conversations locally", zap.Error(err))
		}
		return
	}

	go func() {
		err := src.Watch(watchCtx, func(convs []Conversation) {
			s.applySnapshot(gen, convs)
		})
		if err != nil && watchCtx.Err() == nil {
			s.logger.Error(watchCtx, "conversation watch stopped", zap.Error(err))
		}
	}()
}

// applySnapshot replaces the collection with backend truth, provided the
// snapshot comes from the current repository.
func (s *Service) applySnapshot(gen uint64, convs []Conversation) {
	convs = cloneAll(convs)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.convs = convs
	s.mu.Unlock()

	s.metrics.SnapshotsApplied.Inc()
	s.metrics.Conversations.Set(float64(len(convs)))
	s.notify()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	s.logger.Debug(ctx, "applied conversation snapshot", zap.Int("conversations", len(convs)))
	if err := s.persistLocal(ctx); err != nil {
		s.logger.Warn(ctx, "failed to cache snapshot locally", zap.Error(err))
	}
}

// List returns all conversations, most recently updated first.
func (s *Service) List() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.convs)
}

// Get returns one conversation.
func (s *Service) Get(id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.convs[i].Clone(), nil
	}
	return Conversation{}, ErrConversationNotFound
}

// UnreadTotal sums unread counts across the inbox.
func (s *Service) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.convs {
		total += c.UnreadCount
	}
	return total
}

// Subscribe registers fn to receive the full collection after every
// change. The returned func unregisters it.
func (s *Service) Subscribe(fn func([]Conversation)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify() {
	s.mu.RLock()
	subs := make([]func([]Conversation), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	convs := cloneAll(s.convs)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(cloneAll(convs))
	}
}

// AppendMessage validates and appends a message, creating the
// conversation when no existing one matches. It returns the target
// conversation id. Classifier and persistence failures never fail the
// call; the in-memory update is kept either way.
func (s *Service) AppendMessage(ctx context.Context, req AppendRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "inbox.append",
		trace.WithAttributes(attribute.String("sender", string(req.Sender))))
	defer span.End()

	if strings.TrimSpace(req.Body) == "" {
		return "", ErrEmptyMessage
	}
	if req.Sender != SenderVisitor && req.Sender != SenderOwner {
		return "", ErrInvalidSender
	}

	var flags []string
	if req.Sender == SenderVisitor && s.isSpam(ctx, req.Body) {
		flags = []string{FlagSpam}
	}

	if req.VisitorToken != "" {
		unlock := s.locks.Lock("visitor:" + req.VisitorToken)
		defer unlock()
	}

	id, exists := s.resolve(req.ConversationID, req.VisitorToken)
	if !exists {
		id = ids.New()
	}
	unlock := s.locks.Lock("conversation:" + id)
	defer unlock()

	s.mu.Lock()
	var conv Conversation
	created := false
	if i := s.indexLocked(id); i >= 0 {
		conv = s.convs[i].Clone()
	} else {
		created = true
		conv = s.newConversationLocked(id, req)
	}
	now := s.now().UnixMilli()
	msg := Message{
		ID:             ids.New(),
		ConversationID: id,
		SenderType:     req.Sender,
		Body:           req.Body,
		CreatedAt:      now,
		Flags:          flags,
	}
	if last, ok := conv.LastMessage(); ok && last.CreatedAt > msg.CreatedAt {
		msg.CreatedAt = last.CreatedAt
	}
	applyMessage(&conv, msg)
	if created {
		// New threads start UNREAD even when the owner wrote first; the
		// owner's append still leaves unreadCount at zero.
		conv.Status = StatusUnread
		if len(flags) > 0 {
			conv.Status = StatusSpam
		}
	}
	s.convs = upsert(s.convs, conv)
	repo := s.repo
	count := len(s.convs)
	s.mu.Unlock()

	s.metrics.MessagesAppended.WithLabelValues(string(req.Sender)).Inc()
	s.metrics.Conversations.Set(float64(count))
	if created {
		s.metrics.ConversationsCreated.WithLabelValues(string(conv.Status)).Inc()
	}
	span.SetAttributes(attribute.String("conversation.id", id), attribute.Bool("created", created))
	s.logger.Info(logging.WithConversationID(ctx, id), "message appended",
		zap.String("sender", string(req.Sender)),
		zap.Bool("created", created),
		zap.Int("unread", conv.UnreadCount),
	)

	s.notify()
	if err := s.persist(ctx, repo, conv); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return id, nil
}

// resolve picks the explicit id if known, then the token's thread.
func (s *Service) resolve(conversationID, token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conversationID != "" && s.indexLocked(conversationID) >= 0 {
		return conversationID, true
	}
	if token != "" {
		for _, c := range s.convs {
			if c.VisitorToken == token {
				return c.ID, true
			}
		}
	}
	return "", false
}

// newConversationLocked builds an empty thread; AppendMessage sets its
// initial status once the first message is applied.
func (s *Service) newConversationLocked(id string, req AppendRequest) Conversation {
	return Conversation{
		ID:           id,
		VisitorName:  req.Visitor.DisplayName(),
		VisitorToken: req.VisitorToken,
		CreatedAt:    s.now().UnixMilli(),
		Messages:     []Message{},
	}
}

// applyMessage appends msg and recomputes the tail cache and unread state.
func applyMessage(conv *Conversation, msg Message) {
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessageSnippet = Snippet(msg.Body)
	conv.UpdatedAt = msg.CreatedAt

	switch msg.SenderType {
	case SenderVisitor:
		conv.UnreadCount++
		if conv.Status == StatusRead {
			conv.Status = StatusUnread
		}
	case SenderOwner:
		// Replying counts as having read the thread.
		conv.UnreadCount = 0
		if conv.Status == StatusUnread {
			conv.Status = StatusRead
		}
	}
}

func (s *Service) isSpam(ctx context.Context, body string) bool {
	if s.classifier == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ClassifyTimeout)
	defer cancel()

	verdict, err := s.classifier.CheckSpam(ctx, body)
	if err != nil {
		s.metrics.ClassifierFailures.Inc()
		s.logger.Warn(ctx, "spam check failed, treating message as not spam", zap.Error(err))
		return false
	}
	if verdict.IsSpam {
		s.metrics.SpamFlagged.Inc()
		s.logger.Info(ctx, "message flagged as spam", zap.String("reason", verdict.Reason))
	}
	return verdict.IsSpam
}

func (s *Service) persist(ctx context.Context, repo Repository, conv Conversation) error {
	// The caller may go away; the write should still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	var err error
	if repo == Repository(s.local) {
		err = s.persistLocal(ctx)
	} else {
		err = repo.Put(ctx, conv)
	}
	if err != nil {
		s.metrics.PersistFailures.WithLabelValues(string(repo.Mode())).Inc()
		s.logger.Error(logging.WithConversationID(ctx, conv.ID), "failed to persist conversation",
			zap.String("mode", string(repo.Mode())),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// persistLocal writes the whole in-memory collection to local storage.
// Concurrent appends to different threads each write a full snapshot taken
// under mu, so the stored order always matches memory.
func (s *Service) persistLocal(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snapshot := cloneAll(s.convs)
	s.mu.RUnlock()
	return s.local.ReplaceAll(ctx, snapshot)
}

// MarkAsRead clears the unread count and sets the status to READ. It is a
// no-op when nothing is unread.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	unlock := s.locks.Lock("conversation:" + id)
	defer unlock()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	if s.convs[i].UnreadCount == 0 {
		s.mu.Unlock()
		return nil
	}
	s.convs[i].UnreadCount = 0
	s.convs[i].Status = StatusRead
	conv := s.convs[i].Clone()
	repo := s.repo
	s.mu.Unlock()

	s.logger.Info(logging.WithConversationID(ctx, id), "conversation marked read")
	s.notify()
	_ = s.persist(ctx, repo, conv)
	return nil
}

// CreateTestConversation inserts a demo recruiter thread.
func (s *Service) CreateTestConversation(ctx context.Context) (string, error) {
	id := ids.New()
	unlock := s.locks.Lock("conversation:" + id)
	defer unlock()

	now := s.now().UnixMilli()
	conv := Conversation{
		ID:                 id,
		VisitorName:        DemoVisitorName,
		VisitorToken:       DemoVisitorToken,
		LastMessageSnippet: Snippet(DemoMessage),
		UpdatedAt:          now,
		UnreadCount:        1,
		Status:             StatusUnread,
		Messages: []Message{{
			ID:             ids.New(),
			ConversationID: id,
			SenderType:     SenderVisitor,
			Body:           DemoMessage,
			CreatedAt:      now,
		}},
		CreatedAt: now,
	}

	s.mu.Lock()
	s.convs = upsert(s.convs, conv)
	repo := s.repo
	s.mu.Unlock()

	s.notify()
	_ = s.persist(ctx, repo, conv)
	return id, nil
}

// SimulateOwnerReply appends a canned owner reply after the configured
// delay. The returned channel receives the append error (nil on success)
// and is then closed.
func (s *Service) SimulateOwnerReply(id string) (<-chan error, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	time.AfterFunc(s.cfg.ReplyDelay, func() {
		defer close(done)
		_, err := s.AppendMessage(context.Background(), AppendRequest{
			ConversationID: id,
			Body:           DemoReply,
			Sender:         SenderOwner,
		})
		if err != nil {
			s.logger.Warn(logging.WithConversationID(context.Background(), id), "simulated reply failed", zap.Error(err))
		}
		done <- err
	})
	return done, nil
}

// Close stops any running watcher and closes the active repository.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	repo := s.repo
	s.repo = s.local
	s.generation++
	s.mu.Unlock()

	if repo != Repository(s.local) {
		if err := repo.Close(); err != nil {
			return fmt.Errorf("closing repository: %w", err)
		}
	}
	return nil
}

func (s *Service) indexLocked(id string) int {
	for i := range s.convs {
		if s.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(convs []Conversation) []Conversation {
	out := make([]Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}
