package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/pagination"
)

// MockUUIDGenerator returns the given IDs in order, then generated ones.
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() { m.callCount++ }()
	if m.callCount < len(m.uuids) {
		return m.uuids[m.callCount]
	}
	return fmt.Sprintf("generated-%d", m.callCount)
}

// MockAgentRepository is a mock implementation of AgentRepository
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *MockAgentRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Agent, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *MockAgentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDocumentRepository is a mock implementation of DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeDocument), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.KnowledgeDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListByAgentWithCursor(ctx context.Context, agentID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, agentID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSearchLogRepository is a mock implementation of SearchLogRepository
type MockSearchLogRepository struct {
	mock.Mock
}

func (m *MockSearchLogRepository) CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

// MockEmbeddingCache is a mock implementation of EmbeddingCache
type MockEmbeddingCache struct {
	mock.Mock
}

func (m *MockEmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	args := m.Called(ctx, model, text)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]float32), args.Bool(1), args.Error(2)
}

func (m *MockEmbeddingCache) Set(ctx context.Context, model, text string, vector []float32) error {
	args := m.Called(ctx, model, text, vector)
	return args.Error(0)
}

// fakeEmbedder produces deterministic vectors. Texts containing a key of
// failOn fail with the mapped error.
type fakeEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	failOn    map[string]error
	failMany  error
	usage     int
	embedded  []string
	manyCalls int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{},
		failOn:  map[string]error{},
	}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32((sum>>(i*8))&0xff) / 255
	}
	return vec
}

func (f *fakeEmbedder) check(text string) error {
	for needle, err := range f.failOn {
		if strings.Contains(text, needle) {
			return err
		}
	}
	return nil
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.embedded = append(f.embedded, text)
	if err := f.check(text); err != nil {
		return domain.Embedding{}, err
	}
	return domain.Embedding{Vector: f.vectorFor(text), UsedTokens: f.usage}, nil
}

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([]domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.manyCalls++
	f.embedded = append(f.embedded, texts...)
	if f.failMany != nil {
		return nil, f.failMany
	}
	out := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		if err := f.check(text); err != nil {
			return nil, err
		}
		out[i] = domain.Embedding{Vector: f.vectorFor(text)}
	}
	return out, nil
}

func (f *fakeEmbedder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embedded...)
}

type fakeGenerator struct {
	drafts []domain.SegmentDraft
	err    error
	models []string
	texts  []string
}

func (g *fakeGenerator) GenerateSegments(_ context.Context, model, text string) ([]domain.SegmentDraft, error) {
	g.models = append(g.models, model)
	g.texts = append(g.texts, text)
	if g.err != nil {
		return nil, g.err
	}
	return g.drafts, nil
}

// fakeProviders hands out the same embedder and generator for every key and
// records which keys were requested.
type fakeProviders struct {
	mu        sync.Mutex
	embedder  *fakeEmbedder
	generator *fakeGenerator
	keys      []string
}

func newFakeProviders() *fakeProviders {
	return &fakeProviders{embedder: newFakeEmbedder(), generator: &fakeGenerator{}}
}

func (p *fakeProviders) Embedder(apiKey string) EmbeddingProvider {
	p.mu.Lock()
	p.keys = append(p.keys, apiKey)
	p.mu.Unlock()
	return p.embedder
}

func (p *fakeProviders) Generator(apiKey string) SegmentGenerator {
	p.mu.Lock()
	p.keys = append(p.keys, apiKey)
	p.mu.Unlock()
	return p.generator
}

type counterKey struct {
	documentID string
	kind       domain.SegmentKind
}

// memoryStore is an in-memory segment store with transactional index
// allocation. Transactions hold the store lock, so concurrent appenders
// serialize the way row locks on the counter do.
type memoryStore struct {
	mu        sync.Mutex
	segments  map[string]*domain.KnowledgeSegment
	counters  map[counterKey]int
	documents map[string]*domain.KnowledgeDocument
	jobs      []*domain.RegenerationJob

	failInsert          error
	failDocumentUpdate  error
	failUpdateEmbedding map[string]error
	txCount             int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		segments:            map[string]*domain.KnowledgeSegment{},
		counters:            map[counterKey]int{},
		documents:           map[string]*domain.KnowledgeDocument{},
		failUpdateEmbedding: map[string]error{},
	}
}

func (s *memoryStore) addDocument(doc *domain.KnowledgeDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
}

// addSegment stores a segment directly and advances the counter past it.
func (s *memoryStore) addSegment(seg *domain.KnowledgeSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *seg
	s.segments[seg.ID] = &cp
	k := counterKey{seg.DocumentID, seg.Kind}
	if s.counters[k] <= seg.Index {
		s.counters[k] = seg.Index + 1
	}
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

func (s *memoryStore) WithTx(_ context.Context, fn func(repos TxRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	segments := make(map[string]*domain.KnowledgeSegment, len(s.segments))
	for k, v := range s.segments {
		segments[k] = v
	}
	counters := make(map[counterKey]int, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	documents := make(map[string]*domain.KnowledgeDocument, len(s.documents))
	for k, v := range s.documents {
		documents[k] = v
	}
	jobs := len(s.jobs)

	if err := fn(memoryTx{s}); err != nil {
		s.segments = segments
		s.counters = counters
		s.documents = documents
		s.jobs = s.jobs[:jobs]
		return err
	}
	return nil
}

type memoryTx struct{ s *memoryStore }

func (t memoryTx) Documents() DocumentWriter              { return t }
func (t memoryTx) Segments() SegmentWriter                { return t }
func (t memoryTx) RegenerationJobs() RegenerationJobQueue { return t }

func (t memoryTx) Update(_ context.Context, doc *domain.KnowledgeDocument) error {
	if t.s.failDocumentUpdate != nil {
		return t.s.failDocumentUpdate
	}
	cp := *doc
	t.s.documents[doc.ID] = &cp
	return nil
}

func (t memoryTx) Create(_ context.Context, job *domain.RegenerationJob) error {
	t.s.jobs = append(t.s.jobs, job)
	return nil
}

func (t memoryTx) AllocateIndices(_ context.Context, documentID string, kind domain.SegmentKind, n int) (int, error) {
	k := counterKey{documentID, kind}
	start := t.s.counters[k]
	t.s.counters[k] = start + n
	return start, nil
}

func (t memoryTx) InsertSegments(_ context.Context, segments []*domain.KnowledgeSegment) error {
	for _, seg := range segments {
		if t.s.failInsert != nil {
			return t.s.failInsert
		}
		for _, existing := range t.s.segments {
			if existing.DocumentID == seg.DocumentID && existing.Kind == seg.Kind && existing.Index == seg.Index {
				return fmt.Errorf("duplicate index %d for %s/%s", seg.Index, seg.DocumentID, seg.Kind)
			}
		}
		cp := *seg
		t.s.segments[seg.ID] = &cp
	}
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.KnowledgeSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return nil, domain.ErrSegmentNotFound
	}
	cp := *seg
	return &cp, nil
}

func (s *memoryStore) ListByDocument(_ context.Context, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.KnowledgeSegment
	for _, seg := range s.segments {
		if seg.DocumentID != documentID || (kind != "" && seg.Kind != kind) {
			continue
		}
		cp := *seg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, seg *domain.KnowledgeSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.segments[seg.ID]; !ok {
		return domain.ErrSegmentNotFound
	}
	cp := *seg
	s.segments[seg.ID] = &cp
	return nil
}

func (s *memoryStore) UpdateEmbedding(_ context.Context, id string, tokenCount int, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdateEmbedding[id]; err != nil {
		return err
	}
	seg, ok := s.segments[id]
	if !ok {
		return domain.ErrSegmentNotFound
	}
	seg.TokenCount = tokenCount
	seg.Embedding = embedding
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.segments[id]; !ok {
		return domain.ErrSegmentNotFound
	}
	delete(s.segments, id)
	return nil
}

func (s *memoryStore) SearchByEmbedding(_ context.Context, q SimilarityQuery) ([]*SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*SearchResult
	for _, seg := range s.segments {
		doc, ok := s.documents[seg.DocumentID]
		if !ok || doc.AgentID != q.AgentID || seg.Embedding == nil {
			continue
		}
		if q.Kind != "" && seg.Kind != q.Kind {
			continue
		}
		sim := cosineSimilarity(seg.Embedding, q.Embedding)
		if sim < q.Threshold {
			continue
		}
		out = append(out, &SearchResult{
			SegmentID:           seg.ID,
			DocumentID:          seg.DocumentID,
			Kind:                seg.Kind,
			Index:               seg.Index,
			Title:               seg.Title,
			TitlePath:           seg.TitlePath,
			Content:             seg.Content,
			TokenCount:          seg.TokenCount,
			Similarity:          sim,
			DocumentTitle:       doc.Title,
			DocumentDescription: doc.Description,
			DocumentEnabled:     doc.Enabled,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// testFixture wires an org, an agent with a credential and one document.
type testFixture struct {
	agents    *MockAgentRepository
	documents *MockDocumentRepository
	store     *memoryStore
	providers *fakeProviders
	agent     *domain.Agent
	document  *domain.KnowledgeDocument
	caller    Caller
}

func newTestFixture() *testFixture {
	agent := &domain.Agent{ID: "agent-1", OrgID: "org-1", Name: "Support bot", EmbeddingAPIKey: "sk-test"}
	doc := &domain.KnowledgeDocument{
		ID:         "doc-1",
		AgentID:    agent.ID,
		Title:      "Pricing",
		SourceType: domain.SourceTypeText,
		Enabled:    true,
	}

	f := &testFixture{
		agents:    new(MockAgentRepository),
		documents: new(MockDocumentRepository),
		store:     newMemoryStore(),
		providers: newFakeProviders(),
		agent:     agent,
		document:  doc,
		caller:    OrgCaller(agent.OrgID),
	}
	f.agents.On("GetByID", mock.Anything, agent.ID).Return(agent, nil).Maybe()
	f.agents.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrAgentNotFound).Maybe()
	f.documents.On("GetByID", mock.Anything, doc.ID).Return(doc, nil).Maybe()
	f.documents.On("GetByID", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentNotFound).Maybe()
	f.store.addDocument(doc)
	return f
}

func (f *testFixture) chunking() *ChunkingService {
	return NewChunkingServiceWithUUIDGen(f.agents, f.documents, f.providers, f.store, nil, DefaultChunkingConfig(), NewMockUUIDGenerator())
}
