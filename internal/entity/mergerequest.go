package entity

import "time"

// MergeRequest is the composite assembled from the merge request categories.
type MergeRequest struct {
	SourceID  int64
	Core      *MergeRequestCore
	People    *MergeRequestPeople
	Approvals *MergeRequestApprovals
	Pipeline  *MergeRequestPipeline
	Changes   *MergeRequestChanges
}

// MergeRequestCore holds the base merge request fields.
type MergeRequestCore struct {
	IID          string
	ProjectPath  string
	Title        string
	Description  string
	State        string
	Draft        bool
	SourceBranch string
	TargetBranch string
	WebURL       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MergedAt     *time.Time
	ClosedAt     *time.Time
}

// MergeRequestPeople holds author, assignees and reviewers.
type MergeRequestPeople struct {
	Author    *UserRef
	Assignees []UserRef
	Reviewers []UserRef
	MergeUser *UserRef
}

// MergeRequestApprovals holds approval state.
type MergeRequestApprovals struct {
	Approved          bool
	ApprovalsRequired int
	ApprovalsLeft     int
	ApprovedBy        []UserRef
}

// MergeRequestPipeline holds the head pipeline summary.
type MergeRequestPipeline struct {
	// PipelineID is nil when there is no head pipeline or its id is malformed.
	PipelineID *int64
	Status     string
	SHA        string
}

// MergeRequestChanges holds diff statistics.
type MergeRequestChanges struct {
	Additions   int
	Deletions   int
	FileCount   int
	CommitCount int
}

// Has reports whether the category was fetched.
func (m *MergeRequest) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return m.Core != nil
	case CategoryPeople:
		return m.People != nil
	case CategoryApprovals:
		return m.Approvals != nil
	case CategoryPipeline:
		return m.Pipeline != nil
	case CategoryChanges:
		return m.Changes != nil
	default:
		return false
	}
}

// MergeRequestDocument is the stored form of a merge request.
type MergeRequestDocument struct {
	IID          string     `json:"iid" bson:"iid"`
	ProjectPath  string     `json:"projectPath" bson:"projectPath"`
	Title        string     `json:"title" bson:"title"`
	Description  string     `json:"description" bson:"description"`
	State        string     `json:"state" bson:"state"`
	Draft        bool       `json:"draft" bson:"draft"`
	SourceBranch string     `json:"sourceBranch" bson:"sourceBranch"`
	TargetBranch string     `json:"targetBranch" bson:"targetBranch"`
	WebURL       string     `json:"webUrl" bson:"webUrl"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
	MergedAt     *time.Time `json:"mergedAt,omitempty" bson:"mergedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty" bson:"closedAt,omitempty"`

	Author    *string  `json:"author,omitempty" bson:"author,omitempty"`
	Assignees []string `json:"assignees,omitempty" bson:"assignees,omitempty"`
	Reviewers []string `json:"reviewers,omitempty" bson:"reviewers,omitempty"`
	MergedBy  *string  `json:"mergedBy,omitempty" bson:"mergedBy,omitempty"`

	Approved          *bool    `json:"approved,omitempty" bson:"approved,omitempty"`
	ApprovalsRequired *int     `json:"approvalsRequired,omitempty" bson:"approvalsRequired,omitempty"`
	ApprovalsLeft     *int     `json:"approvalsLeft,omitempty" bson:"approvalsLeft,omitempty"`
	ApprovedBy        []string `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`

	HeadPipelineID     *int64  `json:"headPipelineId,omitempty" bson:"headPipelineId,omitempty"`
	HeadPipelineStatus *string `json:"headPipelineStatus,omitempty" bson:"headPipelineStatus,omitempty"`

	Additions   *int `json:"additions,omitempty" bson:"additions,omitempty"`
	Deletions   *int `json:"deletions,omitempty" bson:"deletions,omitempty"`
	FileCount   *int `json:"fileCount,omitempty" bson:"fileCount,omitempty"`
	CommitCount *int `json:"commitCount,omitempty" bson:"commitCount,omitempty"`
}
