package entity

import "time"

// Milestone is the composite assembled from the milestone categories.
type Milestone struct {
	SourceID int64
	Core     *MilestoneCore
	Stats    *MilestoneStats
}

// MilestoneCore holds the base milestone fields.
type MilestoneCore struct {
	IID         string
	ProjectPath string
	Title       string
	Description string
	State       string
	StartDate   *string
	DueDate     *string
	WebPath     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MilestoneStats holds issue counters of a milestone.
type MilestoneStats struct {
	TotalIssues  int
	ClosedIssues int
}

// Has reports whether the category was fetched.
func (m *Milestone) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return m.Core != nil
	case CategoryStats:
		return m.Stats != nil
	default:
		return false
	}
}

// MilestoneDocument is the stored form of a milestone.
type MilestoneDocument struct {
	IID         string    `json:"iid" bson:"iid"`
	ProjectPath string    `json:"projectPath" bson:"projectPath"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	State       string    `json:"state" bson:"state"`
	StartDate   *string   `json:"startDate,omitempty" bson:"startDate,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	WebPath     string    `json:"webPath" bson:"webPath"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`

	TotalIssues  *int `json:"totalIssues,omitempty" bson:"totalIssues,omitempty"`
	ClosedIssues *int `json:"closedIssues,omitempty" bson:"closedIssues,omitempty"`
}
