package entity

// UserRef is a lightweight reference to a user embedded in other entities.
type UserRef struct {
	ID       int64
	Username string
	Name     string
}

// MilestoneRef references a milestone.
type MilestoneRef struct {
	ID    int64
	Title string
}

// MergeRequestRef references a merge request.
type MergeRequestRef struct {
	ID    int64
	IID   string
	Title string
	State string
}

// Usernames flattens refs into their usernames. Nil input yields nil so a
// missing category stays absent in the mapped document.
func Usernames(refs []UserRef) []string {
	if refs == nil {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Username)
	}
	return out
}
