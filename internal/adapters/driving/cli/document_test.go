package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range documentCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"list", "rename", "delete"}, names)
}

func TestDocumentList_PrintsDocuments(t *testing.T) {
	sess := newFakeSession()
	sess.docs = []domain.Document{
		{ID: "d1", Name: "Report.pdf", Status: domain.StatusCompleted},
		{ID: "d2", Name: "Notes.txt", Status: domain.StatusProcessing},
	}
	path := setupTest(t, sess, nil)

	out, err := run(context.Background(), path, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Report.pdf")
	assert.Contains(t, out, "processing")
	assert.Contains(t, out, "Total: 2 documents")
	assert.Equal(t, 1, sess.refreshed)
	assert.True(t, sess.closed)
	assert.False(t, sess.started, "listing must not open the channel")
}

func TestDocumentList_Empty(t *testing.T) {
	path := setupTest(t, newFakeSession(), nil)

	out, err := run(context.Background(), path, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocumentList_RefreshError(t *testing.T) {
	sess := newFakeSession()
	sess.refreshErr = domain.ErrIdentityUnavailable
	path := setupTest(t, sess, nil)

	_, err := run(context.Background(), path, "document", "list")

	assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
}

func TestDocumentRename(t *testing.T) {
	sess := newFakeSession()
	path := setupTest(t, sess, nil)

	out, err := run(context.Background(), path, "document", "rename", "d1", "New name")

	require.NoError(t, err)
	assert.Contains(t, out, `Renamed d1 to "New name"`)
	assert.Equal(t, "New name", sess.renamed["d1"])
}

func TestDocumentRename_RequiresTwoArgs(t *testing.T) {
	path := setupTest(t, newFakeSession(), nil)

	_, err := run(context.Background(), path, "document", "rename", "d1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestDocumentRename_RolledBack(t *testing.T) {
	sess := newFakeSession()
	sess.renameErr = errors.Join(domain.ErrServerAction, errors.New("boom"))
	path := setupTest(t, sess, nil)

	_, err := run(context.Background(), path, "document", "rename", "d1", "x")

	assert.ErrorIs(t, err, domain.ErrServerAction)
}

func TestDocumentDelete(t *testing.T) {
	sess := newFakeSession()
	path := setupTest(t, sess, nil)

	out, err := run(context.Background(), path, "document", "delete", "d9")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted d9")
	assert.Equal(t, []string{"d9"}, sess.deleted)
}

func TestDocumentDelete_NotFound(t *testing.T) {
	sess := newFakeSession()
	sess.deleteErr = domain.ErrNotFound
	path := setupTest(t, sess, nil)

	_, err := run(context.Background(), path, "document", "delete", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
