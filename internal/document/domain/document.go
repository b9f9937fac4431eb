package domain

import (
	"slices"
	"strings"
	"time"
)

// Status is the publication state of a document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Folder groups documents. A folder without ParentID is a root.
type Folder struct {
	ID          string
	OrgID       string
	ParentID    string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

// FolderNode is a folder with its subfolders.
type FolderNode struct {
	Folder
	Children []*FolderNode
}

// BuildTree arranges folders into trees. Folders whose parent is not in the list are roots.
// Siblings keep the input order. Folders on a parent cycle are left out.
func BuildTree(folders []*Folder) []*FolderNode {
	byID := make(map[string]bool, len(folders))
	for _, f := range folders {
		byID[f.ID] = true
	}
	children := make(map[string][]*Folder)
	var roots []*Folder
	for _, f := range folders {
		if f.ParentID == "" || !byID[f.ParentID] {
			roots = append(roots, f)
			continue
		}
		children[f.ParentID] = append(children[f.ParentID], f)
	}
	var build func(f *Folder) *FolderNode
	build = func(f *Folder) *FolderNode {
		n := &FolderNode{Folder: *f}
		for _, c := range children[f.ID] {
			n.Children = append(n.Children, build(c))
		}
		return n
	}
	out := make([]*FolderNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// Ancestors returns the ids on the parent chain of id, nearest first. It stops at a root, at a
// folder missing from folders, or when the chain loops.
func Ancestors(folders []*Folder, id string) []string {
	parent := make(map[string]string, len(folders))
	for _, f := range folders {
		parent[f.ID] = f.ParentID
	}
	var out []string
	for p := parent[id]; p != "" && !slices.Contains(out, p) && p != id; p = parent[p] {
		out = append(out, p)
	}
	return out
}

// Document is a standard operating procedure or other text kept in the organization's library.
type Document struct {
	ID        string
	OrgID     string
	FolderID  string
	Title     string
	Content   string
	Status    Status
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentUpdate is a partial update of a document. Nil fields are left unchanged; an empty
// FolderID moves the document to the root.
type DocumentUpdate struct {
	Title    *string
	Content  *string
	FolderID *string
	Status   *Status
}

// IsZero reports whether u changes nothing.
func (u DocumentUpdate) IsZero() bool {
	return u.Title == nil && u.Content == nil && u.FolderID == nil && u.Status == nil
}

// FolderUpdate is a partial update of a folder. An empty ParentID moves the folder to the root.
type FolderUpdate struct {
	Name        *string
	Description *string
	ParentID    *string
}

// Version is a snapshot of a document taken after each change. Numbers start at 1.
type Version struct {
	ID            string
	DocumentID    string
	VersionNumber int
	Title         string
	Content       string
	Status        Status
	CreatedBy     string
	CreatedAt     time.Time
}

// Activity actions.
const (
	ActivityCreated            = "created"
	ActivityUpdated            = "updated"
	ActivityPublished          = "published"
	ActivityArchived           = "archived"
	ActivityVersionReverted    = "version_reverted"
	ActivityPermissionsChanged = "permissions_changed"
)

// Activity is one entry of a document's activity log.
type Activity struct {
	ID         string
	DocumentID string
	UserID     string
	Action     string
	Changes    map[string]string
	CreatedAt  time.Time
}

// Access is the level an override grants one user on one document.
type Access string

const (
	AccessNone Access = "none"
	AccessView Access = "view"
	AccessEdit Access = "edit"
)

// ParseAccess accepts none, view and edit in any case.
func ParseAccess(s string) (Access, bool) {
	a := Access(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case AccessNone, AccessView, AccessEdit:
		return a, true
	}
	return "", false
}

// Override replaces a user's role-derived access to one document.
type Override struct {
	DocumentID string
	UserID     string
	Access     Access
}
