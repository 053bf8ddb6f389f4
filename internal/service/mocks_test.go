package service

import (
	"context"
	"io"
	"sync"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, limit int, offset int) ([]domain.Session, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockMessageRepository) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateMetadata(ctx context.Context, messageID uuid.UUID, metadata *domain.MessageMetadata) error {
	args := m.Called(ctx, messageID, metadata)
	return args.Error(0)
}

func (m *MockMessageRepository) CreateAttachment(ctx context.Context, attachment *domain.Attachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

// scriptedStream replays a fixed chunk sequence. With block set it hangs
// after the last chunk until Close or the consumer gives up, which is how
// the abort and timeout paths are exercised.
type scriptedStream struct {
	chunks []llm.Chunk
	err    error
	block  bool

	idx       int
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedStream(block bool, err error, chunks ...llm.Chunk) *scriptedStream {
	return &scriptedStream{
		chunks: chunks,
		err:    err,
		block:  block,
		closed: make(chan struct{}),
	}
}

func (s *scriptedStream) Recv() (*llm.Chunk, error) {
	if s.idx < len(s.chunks) {
		chunk := s.chunks[s.idx]
		s.idx++
		return &chunk, nil
	}
	if s.block {
		<-s.closed
		return nil, io.EOF
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fakeChatProvider hands out one scripted stream per StreamChat round
type fakeChatProvider struct {
	mu       sync.Mutex
	streams  []llm.Stream
	requests []llm.ChatRequest
	openErr  error
}

func (p *fakeChatProvider) Name() string { return "fake" }

func (p *fakeChatProvider) Models() []domain.ModelInfo {
	return []domain.ModelInfo{{
		ID:          "fake-model",
		Name:        "Fake Model",
		Provider:    "fake",
		Available:   true,
		PricingTier: domain.TierCheap,
	}}
}

func (p *fakeChatProvider) DefaultModel() string { return "fake-model" }
func (p *fakeChatProvider) IsConfigured() bool   { return true }

func (p *fakeChatProvider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.openErr != nil {
		return nil, p.openErr
	}
	if len(p.streams) == 0 {
		return newScriptedStream(false, nil), nil
	}
	next := p.streams[0]
	p.streams = p.streams[1:]
	return next, nil
}
