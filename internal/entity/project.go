package entity

import "time"

// Project is the composite assembled from the project categories.
type Project struct {
	SourceID   int64
	Core       *ProjectCore
	Statistics *ProjectStatistics
	Languages  *ProjectLanguages
	Members    *ProjectMembers
}

// ProjectCore holds the base project fields.
type ProjectCore struct {
	Name           string
	FullPath       string
	Description    string
	Visibility     string
	Archived       bool
	NamespacePath  string
	WebURL         string
	CreatedAt      time.Time
	LastActivityAt *time.Time
}

// ProjectStatistics holds repository statistics.
type ProjectStatistics struct {
	StorageSize    int64
	RepositorySize int64
	CommitCount    int64
	OpenIssues     int
}

// Language is one repository language and its share in percent.
type Language struct {
	Name  string
	Share float64
}

// ProjectLanguages holds the detected repository languages.
type ProjectLanguages struct {
	Languages []Language
}

// ProjectMember is a project member and access level.
type ProjectMember struct {
	User        UserRef
	AccessLevel int
}

// ProjectMembers holds the project members.
type ProjectMembers struct {
	Members []ProjectMember
}

// Has reports whether the category was fetched.
func (p *Project) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return p.Core != nil
	case CategoryStatistics:
		return p.Statistics != nil
	case CategoryLanguages:
		return p.Languages != nil
	case CategoryMembers:
		return p.Members != nil
	default:
		return false
	}
}

// ProjectDocument is the stored form of a project.
type ProjectDocument struct {
	Name           string     `json:"name" bson:"name"`
	FullPath       string     `json:"fullPath" bson:"fullPath"`
	Description    string     `json:"description" bson:"description"`
	Visibility     string     `json:"visibility" bson:"visibility"`
	Archived       bool       `json:"archived" bson:"archived"`
	NamespacePath  string     `json:"namespacePath" bson:"namespacePath"`
	WebURL         string     `json:"webUrl" bson:"webUrl"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty" bson:"lastActivityAt,omitempty"`

	StorageSize    *int64 `json:"storageSize,omitempty" bson:"storageSize,omitempty"`
	RepositorySize *int64 `json:"repositorySize,omitempty" bson:"repositorySize,omitempty"`
	CommitCount    *int64 `json:"commitCount,omitempty" bson:"commitCount,omitempty"`
	OpenIssues     *int   `json:"openIssues,omitempty" bson:"openIssues,omitempty"`

	Languages map[string]float64 `json:"languages,omitempty" bson:"languages,omitempty"`
	Members   map[string]int     `json:"members,omitempty" bson:"members,omitempty"`
}
