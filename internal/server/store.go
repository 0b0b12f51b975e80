package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docpin/docpin/internal/pdfindex"
)

// storedDocument is an uploaded, indexed document held for extraction calls.
type storedDocument struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Pages    int       `json:"pages"`
	Segments int       `json:"segments"`
	Uploaded time.Time `json:"uploaded"`

	index *pdfindex.DocumentIndex
}

// documentStore keeps indexed documents in memory, keyed by generated ID.
// Indexes are immutable, so reads need no copying.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]*storedDocument
}

func newDocumentStore() *documentStore {
	return &documentStore{docs: make(map[string]*storedDocument)}
}

// Add indexes a new document under a fresh ID and returns its record.
func (ds *documentStore) Add(filename string, index *pdfindex.DocumentIndex) *storedDocument {
	doc := &storedDocument{
		ID:       uuid.NewString(),
		Filename: filename,
		Pages:    index.PageCount(),
		Segments: index.SegmentCount(),
		Uploaded: time.Now().UTC(),
		index:    index,
	}

	ds.mu.Lock()
	ds.docs[doc.ID] = doc
	ds.mu.Unlock()
	return doc
}

// Get returns a document by ID.
func (ds *documentStore) Get(id string) (*storedDocument, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	doc, ok := ds.docs[id]
	return doc, ok
}

// Delete removes a document, reporting whether it existed.
func (ds *documentStore) Delete(id string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	_, ok := ds.docs[id]
	delete(ds.docs, id)
	return ok
}

// List returns all documents, newest first.
func (ds *documentStore) List() []*storedDocument {
	ds.mu.RLock()
	out := make([]*storedDocument, 0, len(ds.docs))
	for _, doc := range ds.docs {
		out = append(out, doc)
	}
	ds.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Uploaded.After(out[j].Uploaded)
	})
	return out
}
