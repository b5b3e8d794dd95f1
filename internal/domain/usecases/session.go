package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

const commitTimeout = 5 * time.Second

// Ingester builds an index for a corpus.
type Ingester interface {
	Ingest(ctx context.Context, src entities.CorpusSource) (*IndexHandle, error)
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	TopK             int
	ContextSeparator string
}

// SessionManager owns every session: its index binding and its History. It is
// the only writer of History.
type SessionManager struct {
	ingester  Ingester
	embedder  ports.EmbeddingService
	rewriter  *QuestionRewriter
	generator *AnswerGenerator
	query     *QueryUseCase
	history   ports.HistoryStore
	opts      SessionOptions
	log       logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id        string
	source    string
	handle    *IndexHandle
	retriever *Retriever
	createdAt time.Time
	queue     turnQueue

	mu     sync.Mutex
	turns  int
	state  AskState
	closed bool
}

func (s *session) setState(st AskState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) info() entities.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.SessionInfo{
		ID:         s.id,
		Source:     s.source,
		ChunkCount: s.handle.Chunks,
		Turns:      s.turns,
		State:      s.state.String(),
		CreatedAt:  s.createdAt,
	}
}

// NewSessionManager wires a SessionManager.
func NewSessionManager(
	ingester Ingester,
	embedder ports.EmbeddingService,
	rewriter *QuestionRewriter,
	generator *AnswerGenerator,
	query *QueryUseCase,
	history ports.HistoryStore,
	opts SessionOptions,
	log logging.Logger,
) *SessionManager {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.ContextSeparator == "" {
		opts.ContextSeparator = " "
	}
	return &SessionManager{
		ingester:  ingester,
		embedder:  embedder,
		rewriter:  rewriter,
		generator: generator,
		query:     query,
		history:   history,
		opts:      opts,
		log:       logging.OrNop(log),
		sessions:  make(map[string]*session),
	}
}

// CreateSession ingests src and binds a new session to the resulting index.
// No session exists if ingestion fails.
func (m *SessionManager) CreateSession(ctx context.Context, src entities.CorpusSource) (string, error) {
	handle, err := m.ingester.Ingest(ctx, src)
	if err != nil {
		return "", err
	}

	sess := &session{
		id:        uuid.NewString(),
		source:    handle.Source,
		handle:    handle,
		retriever: NewRetriever(m.embedder, handle.Store, m.opts.TopK),
		createdAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	m.log.Info("session %s created from %s (%d chunks)", sess.id, sess.source, handle.Chunks)
	return sess.id, nil
}

func (m *SessionManager) lookup(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, &entities.SessionNotFoundError{SessionID: id}
	}
	return sess, nil
}

// Ask rewrites question against the session history, retrieves context and
// returns the answer stream. Asks on one session run one at a time, in call
// order. Rewrite and retrieval faults fail Ask itself and leave History alone.
//
// The session stays busy until the stream is drained or closed, or ctx ends.
func (m *SessionManager) Ask(ctx context.Context, id, question string) (*AnswerStream, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, entities.ErrEmptyQuestion
	}

	if err := sess.queue.acquire(ctx); err != nil {
		return nil, err
	}
	var once sync.Once
	release := func() { once.Do(sess.queue.release) }

	// The session may have been closed while this ask waited its turn.
	if sess.isClosed() {
		release()
		return nil, &entities.SessionNotFoundError{SessionID: id}
	}

	fail := func(err error) (*AnswerStream, error) {
		sess.setState(StateFailed)
		release()
		m.log.Warn("ask on session %s failed: %v", id, err)
		return nil, err
	}

	history, err := m.history.Load(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("loading history: %w", err))
	}

	sess.setState(StateRewriting)
	standalone, err := m.rewriter.Rewrite(ctx, question, history)
	if err != nil {
		return fail(err)
	}

	sess.setState(StateRetrieving)
	sources, err := sess.retriever.Retrieve(ctx, standalone, 0)
	if err != nil {
		return fail(&entities.GenerationError{Stage: entities.StageRetrieve, Err: err})
	}
	m.log.Debug("session %s: %d chunks retrieved for %q", id, len(sources), standalone)

	sess.setState(StateGenerating)
	contextText := sources.Context(m.opts.ContextSeparator)

	open := func(ctx context.Context) <-chan entities.Fragment {
		return m.generator.Generate(ctx, standalone, contextText, history)
	}
	finish := func(answer string, started bool, state AskState) {
		defer release()
		sess.setState(state)
		if !started {
			return
		}
		m.commit(ctx, sess, question, answer)
	}

	return newAnswerStream(ctx, standalone, sources, open, finish), nil
}

// commit appends the user/assistant pair. Error-tagged and interrupted answers
// are committed as they were delivered. sess.mu is held across the append to
// order it with CloseSession.
func (m *SessionManager) commit(ctx context.Context, sess *session, question, answer string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	if err := m.history.Append(cctx, sess.id, entities.UserTurn(question), entities.AssistantTurn(answer)); err != nil {
		m.log.Error("committing turn for session %s: %v", sess.id, err)
		return
	}
	sess.turns += 2
}

// History returns a copy of the session's turns.
func (m *SessionManager) History(ctx context.Context, id string) ([]entities.Turn, error) {
	if _, err := m.lookup(id); err != nil {
		return nil, err
	}
	return m.history.Load(ctx, id)
}

// Query answers question from the session's corpus without reading or writing
// History.
func (m *SessionManager) Query(ctx context.Context, id, question string) (*entities.ChatResponse, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.query.Query(ctx, sess.retriever, question)
}

// Sessions lists live sessions, oldest first.
func (m *SessionManager) Sessions() []entities.SessionInfo {
	// Snapshot the table first so a slow commit holding one session's lock
	// never blocks the table lock.
	m.mu.RLock()
	live := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	infos := make([]entities.SessionInfo, 0, len(live))
	for _, s := range live {
		infos = append(infos, s.info())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseSession tears a session down: it is removed from the table, its index
// dropped and its History deleted.
func (m *SessionManager) CloseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return &entities.SessionNotFoundError{SessionID: id}
	}

	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()

	var result *multierror.Error
	if err := sess.handle.Store.Clear(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("dropping index: %w", err))
	}
	if err := m.history.Delete(ctx, id); err != nil {
		result = multierror.Append(result, fmt.Errorf("deleting history: %w", err))
	}

	m.log.Info("session %s closed", id)
	return result.ErrorOrNil()
}

// Close tears down every session.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var result *multierror.Error
	for _, id := range ids {
		if err := m.CloseSession(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
