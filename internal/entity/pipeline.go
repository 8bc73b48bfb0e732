package entity

import "time"

// Pipeline is the composite assembled from the pipeline categories.
type Pipeline struct {
	SourceID int64
	Core     *PipelineCore
	Jobs     *PipelineJobs
	Commit   *PipelineCommit
}

// PipelineCore holds the base pipeline fields.
type PipelineCore struct {
	IID         string
	ProjectPath string
	Status      string
	Ref         string
	SHA         string
	Source      string
	Duration    *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// PipelineJobs summarises the jobs of a pipeline.
type PipelineJobs struct {
	Total      int
	ByStatus   map[string]int
	FailedJobs []string
}

// PipelineCommit holds the commit a pipeline ran for.
type PipelineCommit struct {
	Title      string
	AuthorName string
}

// Has reports whether the category was fetched.
func (p *Pipeline) Has(c Category) bool {
	switch c {
	case CategoryCore:
		return p.Core != nil
	case CategoryJobs:
		return p.Jobs != nil
	case CategoryCommit:
		return p.Commit != nil
	default:
		return false
	}
}

// PipelineDocument is the stored form of a pipeline.
type PipelineDocument struct {
	IID         string     `json:"iid" bson:"iid"`
	ProjectPath string     `json:"projectPath" bson:"projectPath"`
	Status      string     `json:"status" bson:"status"`
	Ref         string     `json:"ref" bson:"ref"`
	SHA         string     `json:"sha" bson:"sha"`
	Source      string     `json:"source" bson:"source"`
	Duration    *int       `json:"duration,omitempty" bson:"duration,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`

	JobCount     *int           `json:"jobCount,omitempty" bson:"jobCount,omitempty"`
	JobsByStatus map[string]int `json:"jobsByStatus,omitempty" bson:"jobsByStatus,omitempty"`
	FailedJobs   []string       `json:"failedJobs,omitempty" bson:"failedJobs,omitempty"`
	CommitTitle  *string        `json:"commitTitle,omitempty" bson:"commitTitle,omitempty"`
	CommitAuthor *string        `json:"commitAuthor,omitempty" bson:"commitAuthor,omitempty"`
}
