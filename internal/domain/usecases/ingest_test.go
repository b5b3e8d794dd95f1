package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// vocab is the feature space of keywordVector.
var vocab = []string{"sky", "blue", "grass", "green", "color", "sun", "hot"}

// keywordVector counts vocabulary words, so related texts score higher.
func keywordVector(text string) []float32 {
	v := make([]float32, len(vocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!")
		for i, k := range vocab {
			if w == k {
				v[i]++
			}
		}
	}
	return v
}

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
	calls   atomic.Int32
	batches atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return keywordVector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches.Add(1)
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	mu        sync.Mutex
	chunks    []entities.Chunk
	storeErr  error
	searchErr error
	cleared   bool
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	results := make([]entities.QueryResult, 0, len(m.chunks))
	for _, c := range m.chunks {
		var score float64
		for i := range min(len(emb), len(c.Embedding)) {
			score += float64(emb[i] * c.Embedding[i])
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: score, SourceDoc: c.SourceName})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *mockVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.cleared = true
	return nil
}

// mockStoreFactory hands out mockVectorStores and remembers them.
type mockStoreFactory struct {
	mu       sync.Mutex
	storeErr error
	created  map[string]*mockVectorStore
}

func (f *mockStoreFactory) NewStore(ctx context.Context, collection string) (ports.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created == nil {
		f.created = make(map[string]*mockVectorStore)
	}
	s := &mockVectorStore{storeErr: f.storeErr}
	f.created[collection] = s
	return s, nil
}

func (f *mockStoreFactory) stores() []*mockVectorStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*mockVectorStore, 0, len(f.created))
	for _, s := range f.created {
		out = append(out, s)
	}
	return out
}

// mockLoader implements ports.DocumentLoader for testing
type mockLoader struct {
	docs map[string]string // path -> content
	err  error
}

func (m *mockLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	content, ok := m.docs[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return []entities.Document{{ID: path, Name: path, Path: path, Content: content}}, nil
}

func (m *mockLoader) SupportedExtensions() []string { return []string{".txt"} }

// lineSplitter makes one chunk per non-empty line.
type lineSplitter struct{}

func (lineSplitter) SplitText(text string) ([]string, error) {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func newTestIngester(docs map[string]string) (*IngestUseCase, *mockEmbedder, *mockStoreFactory) {
	embedder := &mockEmbedder{}
	stores := &mockStoreFactory{}
	uc := NewIngestUseCase(&mockLoader{docs: docs}, lineSplitter{}, embedder, stores, IngestOptions{}, nil)
	return uc, embedder, stores
}

func TestIngestUseCase_IndexesEveryChunk(t *testing.T) {
	uc, _, stores := newTestIngester(map[string]string{
		"facts.txt": "The sky is blue.\nGrass is green.\nThe sun is hot.",
	})

	handle, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "facts.txt"})
	require.NoError(t, err)

	assert.Equal(t, "facts.txt", handle.Source)
	assert.Equal(t, 1, handle.Documents)
	assert.Equal(t, 3, handle.Chunks)
	assert.True(t, strings.HasPrefix(handle.Collection, "corpus_"))

	n, err := handle.Store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	store := stores.created[handle.Collection]
	require.NotNil(t, store)
	for i, c := range store.chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, keywordVector(c.Content), c.Embedding)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, 0, store.chunks[0].Offset)
	assert.Equal(t, strings.Index("The sky is blue.\nGrass is green.\nThe sun is hot.", "Grass"), store.chunks[1].Offset)
}

func TestIngestUseCase_EachCorpusGetsItsOwnCollection(t *testing.T) {
	uc, _, stores := newTestIngester(map[string]string{"a.txt": "The sky is blue.", "b.txt": "Grass is green."})

	a, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "a.txt"})
	require.NoError(t, err)
	b, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "b.txt"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Collection, b.Collection)
	assert.Len(t, stores.stores(), 2)
}

func TestIngestUseCase_EmptyCorpus(t *testing.T) {
	uc, embedder, stores := newTestIngester(map[string]string{"empty.txt": "  \n\n "})

	handle, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "empty.txt", Name: "empty"})
	assert.Nil(t, handle)

	var ingestErr *entities.IngestionError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "empty", ingestErr.Source)
	assert.ErrorIs(t, err, entities.ErrEmptyCorpus)
	assert.Zero(t, embedder.batches.Load())
	assert.Empty(t, stores.stores())
}

func TestIngestUseCase_LoadFailure(t *testing.T) {
	uc := NewIngestUseCase(&mockLoader{err: errors.New("unreadable")}, lineSplitter{}, &mockEmbedder{}, &mockStoreFactory{}, IngestOptions{}, nil)

	_, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "broken.pdf"})
	var ingestErr *entities.IngestionError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, "broken.pdf", ingestErr.Source)
}

func TestIngestUseCase_EmbeddingFailure(t *testing.T) {
	uc, embedder, stores := newTestIngester(map[string]string{"facts.txt": "The sky is blue.\nGrass is green."})
	embedder.embedFn = func(string) ([]float32, error) { return nil, errors.New("provider down") }

	_, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "facts.txt"})
	var embErr *entities.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Empty(t, stores.stores())
}

func TestIngestUseCase_StoreFailureDropsCollection(t *testing.T) {
	embedder := &mockEmbedder{}
	stores := &mockStoreFactory{storeErr: errors.New("disk full")}
	uc := NewIngestUseCase(&mockLoader{docs: map[string]string{"facts.txt": "The sky is blue."}}, lineSplitter{}, embedder, stores, IngestOptions{}, nil)

	_, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "facts.txt"})
	var idxErr *entities.IndexingError
	require.ErrorAs(t, err, &idxErr)

	created := stores.stores()
	require.Len(t, created, 1)
	assert.True(t, created[0].cleared)
}

func TestIngestUseCase_BatchesEmbeddings(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = "line " + strings.Repeat("x", i+1)
	}
	embedder := &mockEmbedder{embedFn: func(text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}}
	stores := &mockStoreFactory{}
	uc := NewIngestUseCase(&mockLoader{docs: map[string]string{"big.txt": strings.Join(lines, "\n")}},
		lineSplitter{}, embedder, stores, IngestOptions{BatchSize: 16, Concurrency: 2}, nil)

	handle, err := uc.Ingest(context.Background(), entities.CorpusSource{Path: "big.txt"})
	require.NoError(t, err)
	assert.Equal(t, 40, handle.Chunks)
	assert.Equal(t, int32(3), embedder.batches.Load())

	// Vectors land on the chunk they were computed for.
	for _, c := range stores.created[handle.Collection].chunks {
		assert.Equal(t, []float32{float32(len(c.Content))}, c.Embedding)
	}
}

func TestGenerateChunkID_Deterministic(t *testing.T) {
	assert.Equal(t, generateChunkID("doc", 1), generateChunkID("doc", 1))
	assert.NotEqual(t, generateChunkID("doc", 1), generateChunkID("doc", 2))
	assert.Len(t, generateChunkID("doc", 1), 16)
}
