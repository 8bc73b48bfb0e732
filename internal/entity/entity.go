// Package entity defines the GitLab entity types mirrored by glsync, their
// data categories, the composite records assembled from category fetches and
// the documents persisted to storage.
package entity

import (
	"errors"
	"fmt"
)

// Type identifies a kind of upstream entity.
type Type string

// Supported entity types.
const (
	TypeUsers         Type = "users"
	TypeProjects      Type = "projects"
	TypeIssues        Type = "issues"
	TypeMergeRequests Type = "mergeRequests"
	TypePipelines     Type = "pipelines"
	TypeMilestones    Type = "milestones"
	TypeNamespaces    Type = "namespaces"
)

// ErrUnknownType is returned when an entity type name is not recognised.
var ErrUnknownType = errors.New("unknown entity type")

// AllTypes returns every supported entity type in registration order.
func AllTypes() []Type {
	return []Type{
		TypeNamespaces,
		TypeProjects,
		TypeUsers,
		TypeMilestones,
		TypeIssues,
		TypeMergeRequests,
		TypePipelines,
	}
}

// ParseType converts a name into a Type.
func ParseType(name string) (Type, error) {
	for _, t := range AllTypes() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// String returns the type name.
func (t Type) String() string {
	return string(t)
}

// ProjectScoped reports whether entities of this type live under a project
// and are discovered per project path.
func (t Type) ProjectScoped() bool {
	switch t {
	case TypeIssues, TypeMergeRequests, TypePipelines, TypeMilestones:
		return true
	default:
		return false
	}
}

// Category names one independently fetched slice of an entity's data.
type Category string

// Known categories. The same name may be used by several entity types.
const (
	CategoryCore          Category = "core"
	CategoryPeople        Category = "people"
	CategoryPlanning      Category = "planning"
	CategoryMergeRequests Category = "mergeRequests"
	CategoryLinks         Category = "links"
	CategoryTimeTracking  Category = "timeTracking"
	CategoryApprovals     Category = "approvals"
	CategoryPipeline      Category = "pipeline"
	CategoryChanges       Category = "changes"
	CategoryJobs          Category = "jobs"
	CategoryCommit        Category = "commit"
	CategoryStatistics    Category = "statistics"
	CategoryLanguages     Category = "languages"
	CategoryMembers       Category = "members"
	CategoryStats         Category = "stats"
	CategoryStatus        Category = "status"
	CategoryMemberships   Category = "memberships"
)

// Categories returns the static, ordered category list of the entity type.
// The first element is always the base category.
func (t Type) Categories() []Category {
	switch t {
	case TypeIssues:
		return []Category{
			CategoryCore, CategoryPeople, CategoryPlanning,
			CategoryMergeRequests, CategoryLinks, CategoryTimeTracking,
		}
	case TypeMergeRequests:
		return []Category{CategoryCore, CategoryPeople, CategoryApprovals, CategoryPipeline, CategoryChanges}
	case TypePipelines:
		return []Category{CategoryCore, CategoryJobs, CategoryCommit}
	case TypeProjects:
		return []Category{CategoryCore, CategoryStatistics, CategoryLanguages, CategoryMembers}
	case TypeNamespaces:
		return []Category{CategoryCore, CategoryStatistics}
	case TypeMilestones:
		return []Category{CategoryCore, CategoryStats}
	case TypeUsers:
		return []Category{CategoryCore, CategoryStatus, CategoryMemberships}
	default:
		return nil
	}
}

// Target is a discovered candidate for synchronization.
type Target struct {
	// SourceID is the normalised numeric upstream identifier.
	SourceID int64 `json:"sourceId"`
	// GlobalID is the upstream global identifier (gid://gitlab/...).
	GlobalID string `json:"globalId"`
	// IID is the project-relative identifier, empty for top-level types.
	IID string `json:"iid,omitempty"`
	// Path is the owning project full path for project-scoped types and
	// the group full path for namespaces.
	Path string `json:"path,omitempty"`
}
