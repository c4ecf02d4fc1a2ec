package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SaveFunc is a server action that durably creates or updates a document
// and returns the canonical version. The canonical ID may differ from the
// one sent.
type SaveFunc func(ctx context.Context, doc domain.Document) (domain.Document, error)

// DeleteFunc is a server action that durably deletes a document.
type DeleteFunc func(ctx context.Context, id string) error

// DocumentActions groups the server actions for documents.
// Method values satisfy SaveFunc and DeleteFunc.
type DocumentActions interface {
	CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error)
	UpdateDocument(ctx context.Context, doc domain.Document) (domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// DocumentLister loads the confirmed document set, used to hydrate the
// store before push events take over.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
