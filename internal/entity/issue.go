package entity

import "time"

// Issue is the composite assembled from the issue categories.
// A nil category field means that category was not fetched in this run.
type Issue struct {
	SourceID      int64
	Core          *IssueCore
	People        *IssuePeople
	Planning      *IssuePlanning
	MergeRequests *IssueMergeRequests
	Links         *IssueLinks
	TimeTracking  *IssueTimeTracking
}

// IssueCore holds the base issue fields.
type IssueCore struct {
	IID          string
	ProjectPath  string
	Title        string
	Description  string
	State        string
	Confidential bool
	WebURL       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// IssuePeople holds the people attached to an issue.
type IssuePeople struct {
	Author       *UserRef
	Assignees    []UserRef
	Participants []UserRef
}

// IssuePlanning holds labels, milestone and scheduling fields.
type IssuePlanning struct {
	Labels    []string
	Milestone *MilestoneRef
	DueDate   *string
	Weight    *int
}

// IssueMergeRequests holds the merge requests related to an issue.
type IssueMergeRequests struct {
	MergeRequests []MergeRequestRef
}

// LinkedIssue is an issue linked to another one.
type LinkedIssue struct {
	ID       int64
	IID      string
	LinkType string
	WebURL   string
}

// IssueLinks holds the linked issues.
type IssueLinks struct {
	Linked []LinkedIssue
}

// IssueTimeTracking holds time estimates and spend, in seconds.
type IssueTimeTracking struct {
	TimeEstimate   int
	TotalTimeSpent int
}

// Has reports whether the category was fetched.
func (i *Issue) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return i.Core != nil
	case CategoryPeople:
		return i.People != nil
	case CategoryPlanning:
		return i.Planning != nil
	case CategoryMergeRequests:
		return i.MergeRequests != nil
	case CategoryLinks:
		return i.Links != nil
	case CategoryTimeTracking:
		return i.TimeTracking != nil
	default:
		return false
	}
}

// IssueDocument is the stored form of an issue.
type IssueDocument struct {
	IID          string     `json:"iid" bson:"iid"`
	ProjectPath  string     `json:"projectPath" bson:"projectPath"`
	Title        string     `json:"title" bson:"title"`
	Description  string     `json:"description" bson:"description"`
	State        string     `json:"state" bson:"state"`
	Confidential bool       `json:"confidential" bson:"confidential"`
	WebURL       string     `json:"webUrl" bson:"webUrl"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty" bson:"closedAt,omitempty"`

	Author       *string  `json:"author,omitempty" bson:"author,omitempty"`
	Assignees    []string `json:"assignees,omitempty" bson:"assignees,omitempty"`
	Participants []string `json:"participants,omitempty" bson:"participants,omitempty"`

	Labels         []string `json:"labels,omitempty" bson:"labels,omitempty"`
	MilestoneID    *int64   `json:"milestoneId,omitempty" bson:"milestoneId,omitempty"`
	MilestoneTitle *string  `json:"milestoneTitle,omitempty" bson:"milestoneTitle,omitempty"`
	DueDate        *string  `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Weight         *int     `json:"weight,omitempty" bson:"weight,omitempty"`

	RelatedMergeRequests []int64 `json:"relatedMergeRequests,omitempty" bson:"relatedMergeRequests,omitempty"`
	LinkedIssues         []int64 `json:"linkedIssues,omitempty" bson:"linkedIssues,omitempty"`

	TimeEstimate   *int `json:"timeEstimate,omitempty" bson:"timeEstimate,omitempty"`
	TotalTimeSpent *int `json:"totalTimeSpent,omitempty" bson:"totalTimeSpent,omitempty"`
}
