package entity

import "time"

// Namespace is the composite assembled from the namespace (group) categories.
type Namespace struct {
	SourceID   int64
	Core       *NamespaceCore
	Statistics *NamespaceStatistics
}

// NamespaceCore holds the base group fields.
type NamespaceCore struct {
	Name        string
	FullPath    string
	Description string
	Visibility  string
	ParentID    *int64
	WebURL      string
	CreatedAt   time.Time
}

// NamespaceStatistics holds group level counters.
type NamespaceStatistics struct {
	StorageSize   int64
	ProjectsCount int
	MembersCount  int
}

// Has reports whether the category was fetched.
func (n *Namespace) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return n.Core != nil
	case CategoryStatistics:
		return n.Statistics != nil
	default:
		return false
	}
}

// NamespaceDocument is the stored form of a namespace.
type NamespaceDocument struct {
	Name        string    `json:"name" bson:"name"`
	FullPath    string    `json:"fullPath" bson:"fullPath"`
	Description string    `json:"description" bson:"description"`
	Visibility  string    `json:"visibility" bson:"visibility"`
	ParentID    *int64    `json:"parentId,omitempty" bson:"parentId,omitempty"`
	WebURL      string    `json:"webUrl" bson:"webUrl"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`

	StorageSize   *int64 `json:"storageSize,omitempty" bson:"storageSize,omitempty"`
	ProjectsCount *int   `json:"projectsCount,omitempty" bson:"projectsCount,omitempty"`
	MembersCount  *int   `json:"membersCount,omitempty" bson:"membersCount,omitempty"`
}
