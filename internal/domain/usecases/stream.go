package usecases

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// AskState is the stage of one ask call.
type AskState int

const (
	StateIdle AskState = iota
	StateRewriting
	StateRetrieving
	StateGenerating
	StateCompleted
	StateFailed
)

func (s AskState) String() string {
	switch s {
	case StateRewriting:
		return "rewriting"
	case StateRetrieving:
		return "retrieving"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// AnswerStream is the lazy, single-consumer answer of one ask. The model call
// starts on the first Next. Once finished it yields nothing, so it cannot be
// replayed.
type AnswerStream struct {
	question string
	sources  entities.RetrievalResult

	ctx    context.Context
	cancel context.CancelFunc
	open   func(ctx context.Context) <-chan entities.Fragment
	finish func(answer string, started bool, state AskState)

	mu     sync.Mutex
	frags  <-chan entities.Fragment
	answer strings.Builder
	failed bool
	done   bool
	state  AskState
	stop   func() bool
}

func newAnswerStream(
	ctx context.Context,
	question string,
	sources entities.RetrievalResult,
	open func(ctx context.Context) <-chan entities.Fragment,
	finish func(answer string, started bool, state AskState),
) *AnswerStream {
	sctx, cancel := context.WithCancel(ctx)
	s := &AnswerStream{
		question: question,
		sources:  sources,
		ctx:      sctx,
		cancel:   cancel,
		open:     open,
		finish:   finish,
		state:    StateGenerating,
	}
	// Abandoned requests must not hold the session.
	s.mu.Lock()
	s.stop = context.AfterFunc(ctx, func() { s.Close() })
	s.mu.Unlock()
	return s
}

// Question returns the standalone question the answer was generated for.
func (s *AnswerStream) Question() string { return s.question }

// Sources returns the retrieved chunks used as context.
func (s *AnswerStream) Sources() entities.RetrievalResult { return s.sources }

// State returns generating until the stream finishes, then completed or failed.
func (s *AnswerStream) State() AskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the next fragment. It returns false once the answer is over.
func (s *AnswerStream) Next() (entities.Fragment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return entities.Fragment{}, false
	}
	if s.frags == nil {
		s.frags = s.open(s.ctx)
	}

	f, ok := <-s.frags
	if !ok {
		interrupted := s.ctx.Err() != nil
		s.finishLocked(interrupted)
		return entities.Fragment{}, false
	}

	s.answer.WriteString(f.String())
	if f.IsError() {
		s.failed = true
	}
	return f, true
}

// Fragments ranges over the remaining fragments. Breaking out of the loop
// closes the stream.
func (s *AnswerStream) Fragments() iter.Seq[entities.Fragment] {
	return func(yield func(entities.Fragment) bool) {
		for {
			f, ok := s.Next()
			if !ok {
				return
			}
			if !yield(f) {
				s.Close()
				return
			}
		}
	}
}

// Collect consumes the stream and returns the full answer text. The error is
// the terminal fault, if the model failed.
func (s *AnswerStream) Collect() (string, error) {
	var sb strings.Builder
	var err error
	for f := range s.Fragments() {
		sb.WriteString(f.String())
		if f.IsError() {
			err = f.Err
		}
	}
	return sb.String(), err
}

// Close abandons the stream, releasing the model stream and the session.
// Closing a finished stream is a no-op.
func (s *AnswerStream) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.finishLocked(true)
	}
	return nil
}

func (s *AnswerStream) finishLocked(interrupted bool) {
	s.done = true
	s.cancel()
	if s.stop != nil {
		s.stop()
	}

	if s.failed || interrupted {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.finish(s.answer.String(), s.frags != nil, s.state)
}
