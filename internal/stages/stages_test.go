package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpipe/internal/chunking"
	"lexpipe/internal/models"
	"lexpipe/internal/services"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
)

// --- fakes ---

type memBlob struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{blobs: make(map[string][]byte)}
}

func (b *memBlob) Put(_ context.Context, location string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[location]; ok {
		return "", store.ErrDuplicate
	}
	b.blobs[location] = data
	return location, nil
}

func (b *memBlob) Get(_ context.Context, location string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[location]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

type fakeExtractor struct {
	extraction *services.Extraction
	err        error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (*services.Extraction, error) {
	return f.extraction, f.err
}

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 0}
	}
	return vectors, nil
}

type fakeIndex struct {
	upserted []models.ChunkEmbedding
	results  []models.ScoredChunk
	err      error
}

func (f *fakeIndex) Upsert(_ context.Context, entries []models.ChunkEmbedding) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, entries...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, k int, _ string, _ []string) ([]models.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *fakeIndex) Close() error { return nil }

type fakeGenerator struct {
	answer     string
	confidence float64
	err        error
}

func (f *fakeGenerator) Name() string { return "fake" }
func (f *fakeGenerator) Generate(context.Context, string, []models.ScoredChunk) (string, float64, error) {
	return f.answer, f.confidence, f.err
}

func ec() task.ExecutionContext {
	return task.ExecutionContext{TaskID: "test_1", TraceID: "trace-1", DocumentID: "doc-1"}
}

// --- extract ---

func TestExtractValidateRequiresInputs(t *testing.T) {
	et := &ExtractTask{}
	assert.False(t, et.Validate(task.Input{}))
	assert.False(t, et.Validate(task.Input{"document_id": "doc-1"}))
	assert.True(t, et.Validate(task.Input{"document_id": "doc-1", "raw_location": "raw/doc-1/a.pdf"}))
}

func TestExtractStoresArtifactAndReportsPages(t *testing.T) {
	blob := newMemBlob()
	_, err := blob.Put(context.Background(), "raw/doc-1/a.pdf", []byte("raw bytes"))
	require.NoError(t, err)

	et := &ExtractTask{
		Blob: blob,
		Extractor: &fakeExtractor{extraction: &services.Extraction{
			Text:  "page one text page two text",
			Pages: []services.PageText{{Number: 1, Text: "page one text"}, {Number: 2, Text: "page two text"}},
		}},
	}

	res := et.Execute(context.Background(), ec(), task.Input{
		"document_id":  "doc-1",
		"raw_location": "raw/doc-1/a.pdf",
	})

	require.Equal(t, task.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Output["page_count"])

	location, _ := res.Output["text_location"].(string)
	require.NotEmpty(t, location)
	payload, err := blob.Get(context.Background(), location)
	require.NoError(t, err)
	var stored services.Extraction
	require.NoError(t, json.Unmarshal(payload, &stored))
	assert.Len(t, stored.Pages, 2)
}

func TestExtractSkippedPagesIsPartial(t *testing.T) {
	blob := newMemBlob()
	_, err := blob.Put(context.Background(), "raw/doc-1/a.pdf", []byte("raw"))
	require.NoError(t, err)

	et := &ExtractTask{
		Blob: blob,
		Extractor: &fakeExtractor{extraction: &services.Extraction{
			Text:         "only page one",
			Pages:        []services.PageText{{Number: 1, Text: "only page one"}},
			SkippedPages: 2,
		}},
	}

	res := et.Execute(context.Background(), ec(), task.Input{
		"document_id":  "doc-1",
		"raw_location": "raw/doc-1/a.pdf",
	})

	assert.Equal(t, task.StatusPartial, res.Status)
	assert.Equal(t, 3, res.Output["page_count"], "skipped pages still count toward the total")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "2 pages")
}

func TestExtractMissingBlobIsNotFound(t *testing.T) {
	et := &ExtractTask{Blob: newMemBlob(), Extractor: &fakeExtractor{}}

	res := et.Execute(context.Background(), ec(), task.Input{
		"document_id":  "doc-1",
		"raw_location": "raw/doc-1/gone.pdf",
	})

	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, task.KindNotFound, res.ErrorKind)
}

func TestExtractRerunWritesNewArtifact(t *testing.T) {
	blob := newMemBlob()
	_, err := blob.Put(context.Background(), "raw/doc-1/a.pdf", []byte("raw"))
	require.NoError(t, err)

	et := &ExtractTask{
		Blob: blob,
		Extractor: &fakeExtractor{extraction: &services.Extraction{
			Text:  "text",
			Pages: []services.PageText{{Number: 1, Text: "text"}},
		}},
	}
	input := task.Input{"document_id": "doc-1", "raw_location": "raw/doc-1/a.pdf"}

	first := et.Execute(context.Background(), ec(), input)
	second := et.Execute(context.Background(), ec(), input)

	require.Equal(t, task.StatusSuccess, first.Status)
	require.Equal(t, task.StatusSuccess, second.Status)
	assert.NotEqual(t, first.Output["text_location"], second.Output["text_location"],
		"a rerun must version the artifact, not overwrite it")
}

// --- index ---

func seedExtraction(t *testing.T, blob *memBlob, location string) {
	t.Helper()
	extraction := services.Extraction{
		Text: "The lease term is five years. Rent is due monthly. The tenant may renew.",
		Pages: []services.PageText{
			{Number: 1, Text: "The lease term is five years. Rent is due monthly. The tenant may renew."},
		},
	}
	payload, err := json.Marshal(extraction)
	require.NoError(t, err)
	_, err = blob.Put(context.Background(), location, payload)
	require.NoError(t, err)
}

func TestIndexValidateRequiresInputs(t *testing.T) {
	it := &IndexTask{}
	assert.False(t, it.Validate(task.Input{"document_id": "doc-1", "owner_id": "owner-1"}))
	assert.True(t, it.Validate(task.Input{
		"document_id":   "doc-1",
		"owner_id":      "owner-1",
		"text_location": "processed/doc-1/extraction.json",
	}))
}

func TestIndexChunksEmbedsAndUpserts(t *testing.T) {
	blob := newMemBlob()
	seedExtraction(t, blob, "processed/doc-1/extraction.json")
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}

	it := &IndexTask{
		Blob:     blob,
		Chunker:  chunking.NewChunker(400, 40),
		Embedder: embedder,
		Index:    index,
	}

	res := it.Execute(context.Background(), ec(), task.Input{
		"document_id":   "doc-1",
		"owner_id":      "owner-1",
		"text_location": "processed/doc-1/extraction.json",
	})

	require.Equal(t, task.StatusSuccess, res.Status)
	count, _ := res.Output["chunk_count"].(int)
	require.Greater(t, count, 0)
	require.Len(t, index.upserted, count)
	for _, entry := range index.upserted {
		assert.Equal(t, "owner-1", entry.OwnerID)
		assert.Equal(t, "doc-1", entry.DocumentID)
		assert.NotEmpty(t, entry.Vector)
	}
	require.Len(t, embedder.calls, 1)
	assert.Len(t, embedder.calls[0], count)
}

func TestIndexEmbedderFailureClassified(t *testing.T) {
	blob := newMemBlob()
	seedExtraction(t, blob, "processed/doc-1/extraction.json")

	it := &IndexTask{
		Blob:     blob,
		Chunker:  chunking.NewChunker(400, 40),
		Embedder: &fakeEmbedder{err: context.DeadlineExceeded},
		Index:    &fakeIndex{},
	}

	res := it.Execute(context.Background(), ec(), task.Input{
		"document_id":   "doc-1",
		"owner_id":      "owner-1",
		"text_location": "processed/doc-1/extraction.json",
	})

	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, task.KindTimeout, res.ErrorKind)
}

func TestIndexGarbageArtifactFails(t *testing.T) {
	blob := newMemBlob()
	_, err := blob.Put(context.Background(), "processed/doc-1/extraction.json", []byte("{not json"))
	require.NoError(t, err)

	it := &IndexTask{
		Blob:     blob,
		Chunker:  chunking.NewChunker(400, 40),
		Embedder: &fakeEmbedder{},
		Index:    &fakeIndex{},
	}

	res := it.Execute(context.Background(), ec(), task.Input{
		"document_id":   "doc-1",
		"owner_id":      "owner-1",
		"text_location": "processed/doc-1/extraction.json",
	})

	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, task.KindUnknown, res.ErrorKind)
}

// --- retrieve ---

func TestRetrieveReturnsScoredChunks(t *testing.T) {
	index := &fakeIndex{results: []models.ScoredChunk{
		{Chunk: models.Chunk{ChunkID: "c1", DocumentID: "doc-1", Text: "five years"}, Score: 0.9},
	}}
	rt := &RetrieveTask{Embedder: &fakeEmbedder{}, Index: index}

	res := rt.Execute(context.Background(), ec(), task.Input{
		"query":    "lease term",
		"owner_id": "owner-1",
	})

	require.Equal(t, task.StatusSuccess, res.Status)
	chunks, ok := res.Output["chunks"].([]models.ScoredChunk)
	require.True(t, ok)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ChunkID)
}

func TestRetrieveZeroHitsIsSuccess(t *testing.T) {
	rt := &RetrieveTask{Embedder: &fakeEmbedder{}, Index: &fakeIndex{}}

	res := rt.Execute(context.Background(), ec(), task.Input{
		"query":    "anything at all",
		"owner_id": "owner-1",
	})

	require.Equal(t, task.StatusSuccess, res.Status)
	chunks, ok := res.Output["chunks"].([]models.ScoredChunk)
	require.True(t, ok)
	assert.Empty(t, chunks)
}

func TestRetrieveSearchFailureClassified(t *testing.T) {
	rt := &RetrieveTask{
		Embedder: &fakeEmbedder{},
		Index:    &fakeIndex{err: errors.New("pgvector unreachable")},
	}

	res := rt.Execute(context.Background(), ec(), task.Input{
		"query":    "lease term",
		"owner_id": "owner-1",
	})

	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, task.KindUnknown, res.ErrorKind)
}

// --- reason ---

func TestReasonValidateRequiresEvidence(t *testing.T) {
	rt := &ReasonTask{}
	assert.False(t, rt.Validate(task.Input{"query": "term?"}))
	assert.False(t, rt.Validate(task.Input{"query": "term?", "chunks": []models.ScoredChunk{}}))
	assert.True(t, rt.Validate(task.Input{
		"query":  "term?",
		"chunks": []models.ScoredChunk{{Chunk: models.Chunk{ChunkID: "c1"}}},
	}))
}

func TestReasonProducesCitations(t *testing.T) {
	rt := &ReasonTask{Generator: &fakeGenerator{answer: "Five years.", confidence: 0.8}}
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{ChunkID: "c1", DocumentID: "doc-1", PageNumber: 3, Text: "term is five years"}, Score: 0.9},
		{Chunk: models.Chunk{ChunkID: "c2", DocumentID: "doc-2", PageNumber: 1, Text: "renewal clause"}, Score: 0.7},
	}

	res := rt.Execute(context.Background(), ec(), task.Input{"query": "term?", "chunks": chunks})

	require.Equal(t, task.StatusSuccess, res.Status)
	assert.Equal(t, "Five years.", res.Output["answer"])
	citations, ok := res.Output["citations"].([]models.Citation)
	require.True(t, ok)
	require.Len(t, citations, 2)
	assert.Equal(t, "doc-1", citations[0].DocumentID)
	assert.Equal(t, 3, citations[0].PageNumber)
	assert.InDelta(t, 0.9, citations[0].Score, 1e-9)
}

func TestReasonLowConfidenceIsPartial(t *testing.T) {
	rt := &ReasonTask{Generator: &fakeGenerator{answer: "Perhaps.", confidence: 0.1}}
	chunks := []models.ScoredChunk{{Chunk: models.Chunk{ChunkID: "c1"}, Score: 0.1}}

	res := rt.Execute(context.Background(), ec(), task.Input{"query": "term?", "chunks": chunks})

	assert.Equal(t, task.StatusPartial, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "confidence")
}

func TestReasonGeneratorFailure(t *testing.T) {
	rt := &ReasonTask{Generator: &fakeGenerator{err: fmt.Errorf("model overloaded")}}
	chunks := []models.ScoredChunk{{Chunk: models.Chunk{ChunkID: "c1"}, Score: 0.9}}

	res := rt.Execute(context.Background(), ec(), task.Input{"query": "term?", "chunks": chunks})

	assert.Equal(t, task.StatusFailure, res.Status)
	assert.Equal(t, task.KindUnknown, res.ErrorKind)
}

// --- registration ---

func TestRegisterAllBindsAndSeals(t *testing.T) {
	r := task.NewRegistry()
	require.NoError(t, RegisterAll(r, Deps{
		Blob:      newMemBlob(),
		Index:     &fakeIndex{},
		Extractor: &fakeExtractor{},
		Chunker:   chunking.NewChunker(400, 40),
		Embedder:  &fakeEmbedder{},
		Generator: &fakeGenerator{},
	}))

	assert.ElementsMatch(t, []string{"extract", "index", "retrieve", "reason"}, r.Names())

	// Sealed: nothing may register afterwards.
	err := r.Register("late", func() task.Descriptor { return task.Descriptor{} })
	assert.ErrorIs(t, err, task.ErrRegistrySealed)
}
