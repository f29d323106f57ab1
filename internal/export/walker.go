package export

import (
	"context"
	"fmt"
	"path"

	"mailferry/internal/model"
)

// WalkFolders enumerates the folder tree depth-first starting under rootID
// (empty for the mailbox root). A non-empty rootID names a folder that is
// itself part of the export: it is fetched and emitted before its children.
// The walk uses an explicit work list rather than recursion so arbitrarily
// deep hierarchies cannot blow the stack, and it dedups by folder id so a
// replayed page never yields a folder twice.
//
// stop, if non-nil, is polled before every page fetch; once it reports true
// the walk returns what it has with context.Canceled, issuing no further
// fetches. heartbeat, if non-nil, is called after every page with the number
// of folders found so far.
//
// A page fetch failure returns the folders collected up to that point
// together with a *TransientError; partial results are never discarded.
func WalkFolders(ctx context.Context, src Source, rootID string, stop func() bool, heartbeat func(found int)) ([]model.Folder, error) {
	type pending struct {
		id   string
		path string
	}

	var out []model.Folder
	seen := make(map[string]struct{})
	stack := []pending{{id: rootID}}

	if rootID != "" {
		root, err := src.GetFolder(ctx, rootID)
		if err != nil {
			return nil, &TransientError{Op: fmt.Sprintf("fetch root folder %q", rootID), Err: err}
		}
		root.Path = root.Name
		seen[root.ID] = struct{}{}
		out = append(out, root)
		stack = []pending{{id: root.ID, path: root.Path}}
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cursor := ""
		var children []model.Folder
		for {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			if stop != nil && stop() {
				return out, context.Canceled
			}
			page, err := src.ListFolders(ctx, p.id, cursor)
			if err != nil {
				return out, &TransientError{Op: fmt.Sprintf("list folders under %q", p.id), Err: err}
			}
			for _, f := range page.Folders {
				if _, dup := seen[f.ID]; dup {
					continue
				}
				seen[f.ID] = struct{}{}
				f.ParentID = p.id
				f.Path = path.Join(p.path, f.Name)
				out = append(out, f)
				children = append(children, f)
			}
			if heartbeat != nil {
				heartbeat(len(out))
			}
			if page.Cursor == "" {
				break
			}
			cursor = page.Cursor
		}

		// Push in reverse so the first child is walked first.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, pending{id: children[i].ID, path: children[i].Path})
		}
	}
	return out, nil
}
