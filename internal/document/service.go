// Package document keeps the current organization's document library: folders arranged in a
// tree, documents that move between draft, published and archived, a version snapshot and an
// activity entry for every change, and per-user access overrides on single documents.
//
// Folder operations and deleting a document are gated on the user's role grants for documents.
// Reading and editing a document also honor the user's override on that document, which replaces
// the role's grants for it.
package document

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenline/backend/internal/audit"
	"greenline/backend/internal/document/domain"
	"greenline/backend/internal/document/repository"
	roledomain "greenline/backend/internal/role/domain"
)

var (
	ErrNoOrganization   = errors.New("document: no organization selected")
	ErrNoUser           = errors.New("document: not signed in")
	ErrForbidden        = errors.New("document: not permitted")
	ErrTitleRequired    = errors.New("document: title is required")
	ErrNameRequired     = errors.New("document: folder name is required")
	ErrDocumentNotFound = errors.New("document: document not found")
	ErrFolderNotFound   = errors.New("document: folder not found")
	ErrVersionNotFound  = errors.New("document: version not found")
	ErrInvalidStatus    = errors.New("document: invalid status")
	ErrInvalidAccess    = errors.New("document: invalid access override")
	// ErrFolderNotEmpty rejects deleting a folder that still holds subfolders or documents.
	ErrFolderNotEmpty = errors.New("document: folder is not empty")
	// ErrFolderCycle rejects moving a folder under itself or one of its descendants.
	ErrFolderCycle = errors.New("document: folder cannot be moved under itself")
	// ErrHistory marks a change that was stored while its version snapshot or activity entry was not.
	ErrHistory = errors.New("document: change saved but its history was not recorded")
)

// Organizations reports the organization the library is scoped to.
type Organizations interface {
	CurrentOrganizationID() string
}

// Users reports the signed-in user.
type Users interface {
	CurrentUserID() string
}

// Permissions answers role and object-level checks for the current user (the permission resolver).
type Permissions interface {
	Can(resource, action string) bool
	CanObject(resource, action string, override []string) bool
}

// NewFolder is the input of CreateFolder. An empty ParentID creates a root folder.
type NewFolder struct {
	Name        string
	Description string
	ParentID    string
}

// NewDocument is the input of CreateDocument. An empty FolderID files the document at the root.
type NewDocument struct {
	Title    string
	FolderID string
	Content  string
}

// Service is the document library.
type Service struct {
	repo  repository.Repository
	orgs  Organizations
	users Users
	perms Permissions
	audit audit.AuditLogger
	log   *zap.Logger
	now   func() time.Time

	mu        sync.RWMutex
	folders   []*domain.Folder
	documents []*domain.Document
	current   *domain.Document
	versions  []*domain.Version
	activity  []*domain.Activity
	loading   bool
	err       string
}

// NewService returns a Service. auditLogger and logger may be nil.
func NewService(repo repository.Repository, orgs Organizations, users Users, perms Permissions, auditLogger audit.AuditLogger, logger *zap.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, orgs: orgs, users: users, perms: perms, audit: auditLogger, log: logger, now: time.Now}
}

// overrideActions maps an override to the document actions it allows; nil means no override.
func overrideActions(o *domain.Override) []string {
	if o == nil {
		return nil
	}
	switch o.Access {
	case domain.AccessEdit:
		return []string{roledomain.ActionRead, roledomain.ActionUpdate}
	case domain.AccessView:
		return []string{roledomain.ActionRead}
	default:
		return []string{}
	}
}

func (s *Service) scope() (orgID, userID string, err error) {
	orgID = s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return "", "", ErrNoOrganization
	}
	userID = s.users.CurrentUserID()
	if userID == "" {
		return "", "", ErrNoUser
	}
	return orgID, userID, nil
}

func (s *Service) require(action string) error {
	if !s.perms.Can(roledomain.ResourceDocuments, action) {
		return fmt.Errorf("%w: requires %s", ErrForbidden, roledomain.Grant(roledomain.ResourceDocuments, action))
	}
	return nil
}

// LoadFolders fetches the current organization's folders by name. Without a current
// organization it does nothing.
func (s *Service) LoadFolders(ctx context.Context) error {
	orgID := s.orgs.CurrentOrganizationID()
	if orgID == "" {
		return nil
	}
	if err := s.require(roledomain.ActionRead); err != nil {
		return s.fail(err)
	}
	s.begin()
	defer s.end()

	folders, err := s.repo.ListFolders(ctx, orgID)
	if err != nil {
		s.log.Warn("document: list folders failed", zap.String("org_id", orgID), zap.Error(err))
		return s.fail(fmt.Errorf("load folders: %w", err))
	}
	s.mu.Lock()
	s.folders = folders
	s.mu.Unlock()
	return nil
}

// CreateFolder adds a folder, optionally under one of the organization's folders.
func (s *Service) CreateFolder(ctx context.Context, in NewFolder) (*domain.Folder, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, s.fail(ErrNameRequired)
	}
	if err := s.require(roledomain.ActionCreate); err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if in.ParentID != "" {
		if _, err := s.folder(ctx, orgID, in.ParentID); err != nil {
			return nil, s.fail(err)
		}
	}
	f, err := s.repo.CreateFolder(ctx, &domain.Folder{
		OrgID:       orgID,
		ParentID:    in.ParentID,
		Name:        name,
		Description: in.Description,
		CreatedBy:   userID,
	})
	if err != nil {
		s.log.Warn("document: create folder failed", zap.String("org_id", orgID), zap.Error(err))
		return nil, s.fail(fmt.Errorf("create folder: %w", err))
	}
	s.mu.Lock()
	s.folders = append(s.folders, f)
	slices.SortStableFunc(s.folders, func(a, b *domain.Folder) int { return strings.Compare(a.Name, b.Name) })
	s.mu.Unlock()
	return f, nil
}

// UpdateFolder renames, redescribes or moves a folder. A folder cannot move under itself or any
// of its descendants.
func (s *Service) UpdateFolder(ctx context.Context, id string, u domain.FolderUpdate) (*domain.Folder, error) {
	orgID, _, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, s.fail(ErrNameRequired)
		}
		u.Name = &name
	}
	if err := s.require(roledomain.ActionUpdate); err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.folder(ctx, orgID, id); err != nil {
		return nil, s.fail(err)
	}
	if u.ParentID != nil && *u.ParentID != "" {
		parent := *u.ParentID
		if parent == id {
			return nil, s.fail(ErrFolderCycle)
		}
		if _, err := s.folder(ctx, orgID, parent); err != nil {
			return nil, s.fail(err)
		}
		all, err := s.repo.ListFolders(ctx, orgID)
		if err != nil {
			s.log.Warn("document: list folders failed", zap.String("org_id", orgID), zap.Error(err))
			return nil, s.fail(fmt.Errorf("load folders: %w", err))
		}
		if slices.Contains(domain.Ancestors(all, parent), id) {
			return nil, s.fail(ErrFolderCycle)
		}
	}

	f, err := s.repo.UpdateFolder(ctx, orgID, id, u)
	if err != nil {
		s.log.Warn("document: update folder failed", zap.String("folder_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("update folder: %w", err))
	}
	if f == nil {
		return nil, s.fail(ErrFolderNotFound)
	}
	s.mu.Lock()
	if i := slices.IndexFunc(s.folders, func(x *domain.Folder) bool { return x.ID == id }); i >= 0 {
		s.folders[i] = f
	}
	slices.SortStableFunc(s.folders, func(a, b *domain.Folder) int { return strings.Compare(a.Name, b.Name) })
	s.mu.Unlock()
	return f, nil
}

// DeleteFolder removes an empty folder.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	orgID, _, err := s.scope()
	if err != nil {
		return s.fail(err)
	}
	if err := s.require(roledomain.ActionDelete); err != nil {
		return s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.folder(ctx, orgID, id); err != nil {
		return s.fail(err)
	}
	folders, err := s.repo.ListFolders(ctx, orgID)
	if err != nil {
		return s.fail(fmt.Errorf("load folders: %w", err))
	}
	docs, err := s.repo.ListDocuments(ctx, orgID)
	if err != nil {
		return s.fail(fmt.Errorf("load documents: %w", err))
	}
	if slices.ContainsFunc(folders, func(f *domain.Folder) bool { return f.ParentID == id }) ||
		slices.ContainsFunc(docs, func(d *domain.Document) bool { return d.FolderID == id }) {
		return s.fail(ErrFolderNotEmpty)
	}
	if err := s.repo.DeleteFolder(ctx, orgID, id); err != nil {
		s.log.Warn("document: delete folder failed", zap.String("folder_id", id), zap.Error(err))
		return s.fail(fmt.Errorf("delete folder: %w", err))
	}
	s.mu.Lock()
	s.folders = slices.DeleteFunc(s.folders, func(x *domain.Folder) bool { return x.ID == id })
	s.mu.Unlock()
	return nil
}

func (s *Service) folder(ctx context.Context, orgID, id string) (*domain.Folder, error) {
	f, err := s.repo.GetFolder(ctx, orgID, id)
	if err != nil {
		s.log.Warn("document: get folder failed", zap.String("folder_id", id), zap.Error(err))
		return nil, fmt.Errorf("load folder: %w", err)
	}
	if f == nil {
		return nil, ErrFolderNotFound
	}
	return f, nil
}

// LoadDocuments fetches the current organization's documents the user may read, most recently
// updated first. Without a current organization or user it does nothing.
func (s *Service) LoadDocuments(ctx context.Context) error {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil
	}
	s.begin()
	defer s.end()

	docs, err := s.repo.ListDocuments(ctx, orgID)
	if err != nil {
		s.log.Warn("document: list failed", zap.String("org_id", orgID), zap.Error(err))
		return s.fail(fmt.Errorf("load documents: %w", err))
	}
	overrides, err := s.repo.ListUserOverrides(ctx, userID)
	if err != nil {
		s.log.Warn("document: list overrides failed", zap.String("user_id", userID), zap.Error(err))
		return s.fail(fmt.Errorf("load document overrides: %w", err))
	}
	byDoc := make(map[string]*domain.Override, len(overrides))
	for i := range overrides {
		byDoc[overrides[i].DocumentID] = &overrides[i]
	}
	docs = slices.DeleteFunc(docs, func(d *domain.Document) bool {
		return !s.perms.CanObject(roledomain.ResourceDocuments, roledomain.ActionRead, overrideActions(byDoc[d.ID]))
	})
	s.mu.Lock()
	s.documents = docs
	s.mu.Unlock()
	return nil
}

// LoadDocument fetches one of the organization's documents with its versions and makes it the
// current document.
func (s *Service) LoadDocument(ctx context.Context, id string) (*domain.Document, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	d, err := s.document(ctx, orgID, userID, id, roledomain.ActionRead)
	if err != nil {
		return nil, s.fail(err)
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		s.log.Warn("document: list versions failed", zap.String("document_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load versions: %w", err))
	}
	s.mu.Lock()
	s.current = d
	s.versions = versions
	s.activity = nil
	s.mu.Unlock()
	return d, nil
}

// CreateDocument stores a draft, records version 1 and makes it the current document.
func (s *Service) CreateDocument(ctx context.Context, in NewDocument) (*domain.Document, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, s.fail(ErrTitleRequired)
	}
	if err := s.require(roledomain.ActionCreate); err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if in.FolderID != "" {
		if _, err := s.folder(ctx, orgID, in.FolderID); err != nil {
			return nil, s.fail(err)
		}
	}
	d, err := s.repo.CreateDocument(ctx, &domain.Document{
		OrgID:     orgID,
		FolderID:  in.FolderID,
		Title:     title,
		Content:   in.Content,
		Status:    domain.StatusDraft,
		CreatedBy: userID,
		UpdatedBy: userID,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		s.log.Warn("document: create failed", zap.String("org_id", orgID), zap.Error(err))
		return nil, s.fail(fmt.Errorf("create document: %w", err))
	}
	s.mu.Lock()
	s.documents = append([]*domain.Document{d}, s.documents...)
	s.current = d
	s.versions = nil
	s.activity = nil
	s.mu.Unlock()
	return d, s.record(ctx, userID, d, true, domain.ActivityCreated, nil)
}

// UpdateDocument applies u to a document the user may edit. Changes to the title, content or
// status are snapshotted as a new version.
func (s *Service) UpdateDocument(ctx context.Context, id string, u domain.DocumentUpdate) (*domain.Document, error) {
	return s.update(ctx, id, u, "", nil)
}

// PublishDocument moves a document to published.
func (s *Service) PublishDocument(ctx context.Context, id string) (*domain.Document, error) {
	st := domain.StatusPublished
	return s.update(ctx, id, domain.DocumentUpdate{Status: &st}, domain.ActivityPublished, nil)
}

// ArchiveDocument moves a document to archived.
func (s *Service) ArchiveDocument(ctx context.Context, id string) (*domain.Document, error) {
	st := domain.StatusArchived
	return s.update(ctx, id, domain.DocumentUpdate{Status: &st}, domain.ActivityArchived, nil)
}

// RevertToVersion restores the title, content and status of version number and records the
// result as a new version.
func (s *Service) RevertToVersion(ctx context.Context, id string, number int) (*domain.Document, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.document(ctx, orgID, userID, id, roledomain.ActionUpdate); err != nil {
		return nil, s.fail(err)
	}
	v, err := s.repo.GetVersion(ctx, id, number)
	if err != nil {
		s.log.Warn("document: get version failed", zap.String("document_id", id), zap.Int("version", number), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load version: %w", err))
	}
	if v == nil {
		return nil, s.fail(fmt.Errorf("%w: %d", ErrVersionNotFound, number))
	}
	u := domain.DocumentUpdate{Title: &v.Title, Content: &v.Content, Status: &v.Status}
	return s.apply(ctx, orgID, userID, id, u, domain.ActivityVersionReverted,
		map[string]string{"reverted_to_version": strconv.Itoa(number)})
}

func (s *Service) update(ctx context.Context, id string, u domain.DocumentUpdate, action string, changes map[string]string) (*domain.Document, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, s.fail(ErrTitleRequired)
		}
		u.Title = &title
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, s.fail(fmt.Errorf("%w: %q", ErrInvalidStatus, *u.Status))
	}
	s.begin()
	defer s.end()

	prev, err := s.document(ctx, orgID, userID, id, roledomain.ActionUpdate)
	if err != nil {
		return nil, s.fail(err)
	}
	if u.IsZero() {
		return prev, nil
	}
	if u.FolderID != nil && *u.FolderID != "" {
		if _, err := s.folder(ctx, orgID, *u.FolderID); err != nil {
			return nil, s.fail(err)
		}
	}
	if action == "" {
		action = domain.ActivityUpdated
		changes = map[string]string{"fields": strings.Join(changedFields(u), ",")}
	}
	return s.apply(ctx, orgID, userID, id, u, action, changes)
}

func changedFields(u domain.DocumentUpdate) []string {
	var out []string
	if u.Content != nil {
		out = append(out, "content")
	}
	if u.FolderID != nil {
		out = append(out, "folder_id")
	}
	if u.Status != nil {
		out = append(out, "status")
	}
	if u.Title != nil {
		out = append(out, "title")
	}
	return out
}

func (s *Service) apply(ctx context.Context, orgID, userID, id string, u domain.DocumentUpdate, action string, changes map[string]string) (*domain.Document, error) {
	d, err := s.repo.UpdateDocument(ctx, orgID, id, u, userID, s.now().UTC())
	if err != nil {
		s.log.Warn("document: update failed", zap.String("document_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("update document: %w", err))
	}
	if d == nil {
		return nil, s.fail(ErrDocumentNotFound)
	}
	s.replace(d)
	snapshot := u.Title != nil || u.Content != nil || u.Status != nil
	return d, s.record(ctx, userID, d, snapshot, action, changes)
}

// record appends a version snapshot of d, when snapshot is set, and an activity entry.
func (s *Service) record(ctx context.Context, userID string, d *domain.Document, snapshot bool, action string, changes map[string]string) error {
	if snapshot {
		versions, err := s.repo.ListVersions(ctx, d.ID)
		if err != nil {
			return s.historyFailed(d.ID, fmt.Errorf("load versions: %w", err))
		}
		next := 1
		if len(versions) > 0 {
			next = versions[0].VersionNumber + 1
		}
		v, err := s.repo.CreateVersion(ctx, &domain.Version{
			DocumentID:    d.ID,
			VersionNumber: next,
			Title:         d.Title,
			Content:       d.Content,
			Status:        d.Status,
			CreatedBy:     userID,
		})
		if err != nil {
			return s.historyFailed(d.ID, fmt.Errorf("create version: %w", err))
		}
		s.mu.Lock()
		if s.current != nil && s.current.ID == d.ID {
			s.versions = append([]*domain.Version{v}, s.versions...)
		}
		s.mu.Unlock()
	}
	if err := s.repo.LogActivity(ctx, &domain.Activity{DocumentID: d.ID, UserID: userID, Action: action, Changes: changes}); err != nil {
		return s.historyFailed(d.ID, fmt.Errorf("log activity: %w", err))
	}
	return nil
}

func (s *Service) historyFailed(documentID string, err error) error {
	s.log.Error("document: history not recorded", zap.String("document_id", documentID), zap.Error(err))
	return s.fail(fmt.Errorf("%w: %w", ErrHistory, err))
}

// DeleteDocument removes a document with its history and overrides.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	orgID, _, err := s.scope()
	if err != nil {
		return s.fail(err)
	}
	if err := s.require(roledomain.ActionDelete); err != nil {
		return s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.scoped(ctx, orgID, id); err != nil {
		return s.fail(err)
	}
	if err := s.repo.DeleteDocument(ctx, orgID, id); err != nil {
		s.log.Warn("document: delete failed", zap.String("document_id", id), zap.Error(err))
		return s.fail(fmt.Errorf("delete document: %w", err))
	}
	s.mu.Lock()
	s.documents = slices.DeleteFunc(s.documents, func(x *domain.Document) bool { return x.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.versions = nil
		s.activity = nil
	}
	s.mu.Unlock()
	return nil
}

// LoadVersions fetches a document's versions, newest first.
func (s *Service) LoadVersions(ctx context.Context, id string) ([]*domain.Version, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.document(ctx, orgID, userID, id, roledomain.ActionRead); err != nil {
		return nil, s.fail(err)
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		s.log.Warn("document: list versions failed", zap.String("document_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load versions: %w", err))
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.versions = versions
	}
	s.mu.Unlock()
	return versions, nil
}

// LoadActivity fetches a document's activity log, newest first.
func (s *Service) LoadActivity(ctx context.Context, id string) ([]*domain.Activity, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.document(ctx, orgID, userID, id, roledomain.ActionRead); err != nil {
		return nil, s.fail(err)
	}
	activity, err := s.repo.ListActivity(ctx, id)
	if err != nil {
		s.log.Warn("document: list activity failed", zap.String("document_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load activity: %w", err))
	}
	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.activity = activity
	}
	s.mu.Unlock()
	return activity, nil
}

// DocumentPermissions returns the overrides stored on a document the user may read.
func (s *Service) DocumentPermissions(ctx context.Context, id string) ([]domain.Override, error) {
	orgID, userID, err := s.scope()
	if err != nil {
		return nil, s.fail(err)
	}
	s.begin()
	defer s.end()

	if _, err := s.document(ctx, orgID, userID, id, roledomain.ActionRead); err != nil {
		return nil, s.fail(err)
	}
	overrides, err := s.repo.ListOverrides(ctx, id)
	if err != nil {
		s.log.Warn("document: list overrides failed", zap.String("document_id", id), zap.Error(err))
		return nil, s.fail(fmt.Errorf("load overrides: %w", err))
	}
	return overrides, nil
}

// SetDocumentPermissions replaces a document's overrides. Managing overrides needs the role
// grant documents:update; an override of the caller's own does not confer it. When a user is
// listed twice the last entry wins.
func (s *Service) SetDocumentPermissions(ctx context.Context, id string, overrides []domain.Override) error {
	orgID, userID, err := s.scope()
	if err != nil {
		return s.fail(err)
	}
	if err := s.require(roledomain.ActionUpdate); err != nil {
		return s.fail(err)
	}
	clean := make([]domain.Override, 0, len(overrides))
	for _, o := range overrides {
		access, ok := domain.ParseAccess(string(o.Access))
		if !ok || o.UserID == "" {
			return s.fail(fmt.Errorf("%w: user %q access %q", ErrInvalidAccess, o.UserID, o.Access))
		}
		clean = slices.DeleteFunc(clean, func(x domain.Override) bool { return x.UserID == o.UserID })
		clean = append(clean, domain.Override{DocumentID: id, UserID: o.UserID, Access: access})
	}
	s.begin()
	defer s.end()

	d, err := s.scoped(ctx, orgID, id)
	if err != nil {
		return s.fail(err)
	}
	if err := s.repo.ReplaceOverrides(ctx, id, clean); err != nil {
		s.log.Warn("document: replace overrides failed", zap.String("document_id", id), zap.Error(err))
		return s.fail(fmt.Errorf("set document permissions: %w", err))
	}
	s.audit.LogEvent(ctx, orgID, userID, audit.ActionDocumentAccess, "document",
		map[string]string{"document_id": id, "overrides": strconv.Itoa(len(clean))})
	return s.record(ctx, userID, d, false, domain.ActivityPermissionsChanged,
		map[string]string{"overrides": strconv.Itoa(len(clean))})
}

// document returns the organization's document for id after checking that the user may perform
// action on it.
func (s *Service) document(ctx context.Context, orgID, userID, id, action string) (*domain.Document, error) {
	d, err := s.scoped(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.GetOverride(ctx, id, userID)
	if err != nil {
		s.log.Warn("document: get override failed", zap.String("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("load document override: %w", err)
	}
	if !s.perms.CanObject(roledomain.ResourceDocuments, action, overrideActions(o)) {
		return nil, fmt.Errorf("%w: %s on document %s", ErrForbidden, roledomain.Grant(roledomain.ResourceDocuments, action), id)
	}
	return d, nil
}

func (s *Service) scoped(ctx context.Context, orgID, id string) (*domain.Document, error) {
	d, err := s.repo.GetDocument(ctx, orgID, id)
	if err != nil {
		s.log.Warn("document: get failed", zap.String("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("load document: %w", err)
	}
	if d == nil {
		return nil, ErrDocumentNotFound
	}
	return d, nil
}

// replace moves d to the front of the list, which is ordered by last update, and refreshes the
// current document.
func (s *Service) replace(d *domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.documents, func(x *domain.Document) bool { return x.ID == d.ID }); i >= 0 {
		s.documents = append([]*domain.Document{d}, slices.Delete(s.documents, i, i+1)...)
	}
	if s.current != nil && s.current.ID == d.ID {
		s.current = d
	}
}

// Reset drops every cached folder and document. It is called when the current organization changes.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = nil
	s.documents = nil
	s.current = nil
	s.versions = nil
	s.activity = nil
	s.err = ""
}

// ClearCurrentDocument drops the current document and its history.
func (s *Service) ClearCurrentDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.versions = nil
	s.activity = nil
}

// Folders returns the cached folders by name.
func (s *Service) Folders() []*domain.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.folders)
}

// FolderTree arranges the cached folders into trees.
func (s *Service) FolderTree() []*domain.FolderNode {
	return domain.BuildTree(s.Folders())
}

// Documents returns the cached documents, most recently updated first.
func (s *Service) Documents() []*domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.documents)
}

// DocumentsInFolder returns the cached documents filed in folderID; "" selects the root.
func (s *Service) DocumentsInFolder(folderID string) []*domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, d := range s.documents {
		if d.FolderID == folderID {
			out = append(out, d)
		}
	}
	return out
}

func (s *Service) CurrentDocument() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Versions returns the current document's versions, newest first.
func (s *Service) Versions() []*domain.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.versions)
}

// Activity returns the current document's activity as last loaded.
func (s *Service) Activity() []*domain.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activity)
}

func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last failed operation, or "" when it succeeded.
func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Service) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Service) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Service) fail(err error) error {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
	return err
}
