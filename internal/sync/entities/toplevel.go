package entities

import (
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
)

// ProjectsPlugin syncs projects. Projects are never age skipped.
type ProjectsPlugin struct {
	base[entity.Project, entity.ProjectDocument]
}

var _ sync.Plugin[entity.Project, entity.ProjectDocument] = (*ProjectsPlugin)(nil)

// NewProjectsPlugin returns the projects plugin.
func NewProjectsPlugin(src Source[entity.Project], scopes []string) *ProjectsPlugin {
	return &ProjectsPlugin{
		base: newBase[entity.Project, entity.ProjectDocument](entity.TypeProjects, src, scopes),
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*ProjectsPlugin) IsCategoryPresent(rec *entity.Project, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip implements sync.Plugin.
func (*ProjectsPlugin) ShouldSkip(rec *store.Record[entity.ProjectDocument], _ sync.Options) bool {
	return skipExternal(rec)
}

// MapToStorageSchema implements sync.Plugin.
func (*ProjectsPlugin) MapToStorageSchema(rec *entity.Project) (entity.ProjectDocument, error) {
	if rec.Core == nil {
		return entity.ProjectDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.ProjectDocument{
		Name:           c.Name,
		FullPath:       c.FullPath,
		Description:    c.Description,
		Visibility:     c.Visibility,
		Archived:       c.Archived,
		NamespacePath:  c.NamespacePath,
		WebURL:         c.WebURL,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	}
	if s := rec.Statistics; s != nil {
		doc.StorageSize = ptr(s.StorageSize)
		doc.RepositorySize = ptr(s.RepositorySize)
		doc.CommitCount = ptr(s.CommitCount)
		doc.OpenIssues = ptr(s.OpenIssues)
	}
	if l := rec.Languages; l != nil {
		doc.Languages = make(map[string]float64, len(l.Languages))
		for _, lang := range l.Languages {
			doc.Languages[lang.Name] = lang.Share
		}
	}
	if m := rec.Members; m != nil {
		doc.Members = make(map[string]int, len(m.Members))
		for _, member := range m.Members {
			doc.Members[member.User.Username] = member.AccessLevel
		}
	}
	return doc, nil
}

// NamespacesPlugin syncs groups. Groups are never age skipped.
type NamespacesPlugin struct {
	base[entity.Namespace, entity.NamespaceDocument]
}

var _ sync.Plugin[entity.Namespace, entity.NamespaceDocument] = (*NamespacesPlugin)(nil)

// NewNamespacesPlugin returns the namespaces plugin.
func NewNamespacesPlugin(src Source[entity.Namespace], scopes []string) *NamespacesPlugin {
	return &NamespacesPlugin{
		base: newBase[entity.Namespace, entity.NamespaceDocument](entity.TypeNamespaces, src, scopes),
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*NamespacesPlugin) IsCategoryPresent(rec *entity.Namespace, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip implements sync.Plugin.
func (*NamespacesPlugin) ShouldSkip(rec *store.Record[entity.NamespaceDocument], _ sync.Options) bool {
	return skipExternal(rec)
}

// MapToStorageSchema implements sync.Plugin.
func (*NamespacesPlugin) MapToStorageSchema(rec *entity.Namespace) (entity.NamespaceDocument, error) {
	if rec.Core == nil {
		return entity.NamespaceDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.NamespaceDocument{
		Name:        c.Name,
		FullPath:    c.FullPath,
		Description: c.Description,
		Visibility:  c.Visibility,
		ParentID:    c.ParentID,
		WebURL:      c.WebURL,
		CreatedAt:   c.CreatedAt,
	}
	if s := rec.Statistics; s != nil {
		doc.StorageSize = ptr(s.StorageSize)
		doc.ProjectsCount = ptr(s.ProjectsCount)
		doc.MembersCount = ptr(s.MembersCount)
	}
	return doc, nil
}

// UsersPlugin syncs users. Users are never age skipped.
type UsersPlugin struct {
	base[entity.User, entity.UserDocument]
}

var _ sync.Plugin[entity.User, entity.UserDocument] = (*UsersPlugin)(nil)

// NewUsersPlugin returns the users plugin.
func NewUsersPlugin(src Source[entity.User], scopes []string) *UsersPlugin {
	return &UsersPlugin{
		base: newBase[entity.User, entity.UserDocument](entity.TypeUsers, src, scopes),
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*UsersPlugin) IsCategoryPresent(rec *entity.User, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip implements sync.Plugin.
func (*UsersPlugin) ShouldSkip(rec *store.Record[entity.UserDocument], _ sync.Options) bool {
	return skipExternal(rec)
}

// MapToStorageSchema implements sync.Plugin.
func (*UsersPlugin) MapToStorageSchema(rec *entity.User) (entity.UserDocument, error) {
	if rec.Core == nil {
		return entity.UserDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.UserDocument{
		Username:    c.Username,
		Name:        c.Name,
		State:       c.State,
		Bot:         c.Bot,
		PublicEmail: c.PublicEmail,
		AvatarURL:   c.AvatarURL,
		WebURL:      c.WebURL,
		CreatedAt:   c.CreatedAt,
	}
	if s := rec.Status; s != nil {
		doc.StatusMessage = ptr(s.Message)
		doc.Availability = ptr(s.Availability)
	}
	if m := rec.Memberships; m != nil {
		doc.GroupCount = ptr(m.GroupCount)
		doc.ProjectCount = ptr(m.ProjectCount)
	}
	return doc, nil
}
