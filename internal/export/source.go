package export

import (
	"context"

	"mailferry/internal/model"
)

// FolderPage is one page of a folder listing. Cursor is an opaque
// continuation token; empty means the listing is exhausted.
type FolderPage struct {
	Folders []model.Folder
	Cursor  string
}

// MessagePage is one page of a message listing for a folder.
type MessagePage struct {
	Refs   []model.MessageRef
	Cursor string
}

// Source is the remote API surface the pipeline consumes. The cursor strings
// are passed back verbatim. Implementations map auth expiry to *AuthError and
// everything else to plain errors; the pipeline wraps list failures in
// *TransientError itself.
type Source interface {
	// ListFolders returns one page of child folders of parentID
	// (empty parentID means top level).
	ListFolders(ctx context.Context, parentID, cursor string) (FolderPage, error)
	// ListMessages returns one page of message refs in a folder.
	ListMessages(ctx context.Context, folderID, cursor string) (MessagePage, error)
	// GetFolder fetches one folder's metadata. Used when the walk is
	// rooted at a specific folder rather than the mailbox top level.
	GetFolder(ctx context.Context, id string) (model.Folder, error)
	// GetMessage fetches the full content of one message. Attachment
	// entries carry metadata only; bodies come from GetAttachment.
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// GetAttachment fetches one attachment body.
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	// CountMessages returns the server's total item count. Best effort:
	// the value may drift while the mailbox mutates.
	CountMessages(ctx context.Context) (int, error)
}
