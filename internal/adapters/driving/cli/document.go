package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "List, rename or delete documents",
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentRenameCmd = &cobra.Command{
	Use:   "rename [doc-id] [name]",
	Short: "Rename a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentRename,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentRenameCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// withDocuments runs fn against a session hydrated from the API. The
// channel is not opened; mutations go through the server actions only.
func withDocuments(cmd *cobra.Command, fn func(ctx context.Context, sess driving.SyncSession) error) error {
	_, settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sess, err := sessionFactory(ctx, settings, nil)
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck // nothing was opened

	if err := sess.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	return fn(ctx, sess)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	return withDocuments(cmd, func(_ context.Context, sess driving.SyncSession) error {
		st := newStyles(cmd.OutOrStdout())
		docs := sess.Documents()
		if len(docs) == 0 {
			cmd.Println("No documents found.")
			return nil
		}

		for i := range docs {
			cmd.Printf("  %s  %-40s %s\n", st.Muted(docs[i].ID), docs[i].Name, st.Status(docs[i].Status))
		}
		cmd.Printf("\nTotal: %d documents\n", len(docs))
		return nil
	})
}

func runDocumentRename(cmd *cobra.Command, args []string) error {
	return withDocuments(cmd, func(ctx context.Context, sess driving.SyncSession) error {
		doc, err := sess.Rename(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to rename document: %w", err)
		}
		cmd.Printf("Renamed %s to %q\n", doc.ID, doc.Name)
		return nil
	})
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	return withDocuments(cmd, func(ctx context.Context, sess driving.SyncSession) error {
		if err := sess.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		cmd.Printf("Deleted %s\n", args[0])
		return nil
	})
}
