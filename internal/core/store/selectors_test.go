package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// TestSelectors_ReferentiallyStable tests that unchanged inputs return the
// same result rather than a fresh copy
func TestSelectors_ReferentiallyStable(t *testing.T) {
	s := New()
	s.AddDocument(testDoc("doc-1", "A"))
	s.AddSubscription("document:1")

	first := s.Documents()
	second := s.Documents()
	require.Len(t, first, 1)
	assert.Same(t, &first[0], &second[0])

	ch1 := s.ActiveChannels()
	ch2 := s.ActiveChannels()
	assert.Same(t, &ch1[0], &ch2[0])

	// socket changes leave the document selector untouched
	s.SetConnected()
	third := s.Documents()
	assert.Same(t, &first[0], &third[0])

	// a document change produces a new result
	s.UpdateDocument("doc-1", domain.DocumentPatch{Name: domain.StringPtr("B")})
	fourth := s.Documents()
	assert.NotSame(t, &first[0], &fourth[0])
	assert.Equal(t, "B", fourth[0].Name)
}

func TestSelector_Memoises(t *testing.T) {
	calls := 0
	sel := NewSelector(func(st *State) uint64 { return st.docRev }, func(st *State) int {
		calls++
		return st.ConfirmedCount()
	})
	s := New()

	sel.Select(s.State())
	sel.Select(s.State())
	assert.Equal(t, 1, calls)

	s.AddDocument(testDoc("doc-1", "A"))
	assert.Equal(t, 1, sel.Select(s.State()))
	assert.Equal(t, 2, calls)
}

func TestDocumentsByStatus(t *testing.T) {
	s := New()
	s.AddDocument(testDoc("doc-1", "A"))
	s.AddDocument(testDoc("doc-2", "B"))
	s.UpdateProgress("doc-2", "enh-2", 10, "")

	uploaded := s.DocumentsByStatus(domain.StatusUploaded)
	processing := s.DocumentsByStatus(domain.StatusProcessing)

	require.Len(t, uploaded, 1)
	assert.Equal(t, "doc-1", uploaded[0].ID)
	require.Len(t, processing, 1)
	assert.Equal(t, "doc-2", processing[0].ID)
	assert.Empty(t, s.DocumentsByStatus(domain.StatusFailed))
}

func TestVisibleDocuments_Ordering(t *testing.T) {
	s := New()
	late := testDoc("doc-a", "late")
	late.CreatedAt = late.CreatedAt.Add(1)
	s.AddDocument(late)
	s.AddDocument(testDoc("doc-c", "early"))
	s.AddDocument(testDoc("doc-b", "early"))

	docs := s.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"doc-b", "doc-c", "doc-a"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

// TestSelectors_ReturnCopies tests that callers cannot corrupt the store
func TestSelectors_ReturnCopies(t *testing.T) {
	s := New()
	doc := testDoc("doc-1", "A")
	doc.Metadata = map[string]any{"k": "v"}
	s.AddDocument(doc)

	got, _ := s.Document("doc-1")
	got.Metadata["k"] = "mutated"

	again, _ := s.Document("doc-1")
	assert.Equal(t, "v", again.Metadata["k"])
}
