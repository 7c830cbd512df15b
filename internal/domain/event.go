package domain

// PushEvent is the provider's push notification payload. It is transient:
// decoded from the webhook body, consumed by the pipeline, never persisted.
type PushEvent struct {
	Ref        string     `json:"ref"`
	Before     string     `json:"before"`
	After      string     `json:"after"`
	Repository Repository `json:"repository"`
	Commits    []Commit   `json:"commits"`
}

// Repository identifies the repository a push event belongs to.
type Repository struct {
	Name    string `json:"name"`
	Owner   Owner  `json:"owner"`
	Private bool   `json:"private"`
}

// Owner is the account that owns the pushed repository.
type Owner struct {
	Name string `json:"name"`
}

// Commit is one raw commit descriptor from the provider, in the chronological
// order the provider delivered it.
type Commit struct {
	ID       string       `json:"id"`
	Message  string       `json:"message"`
	URL      string       `json:"url"`
	Author   CommitAuthor `json:"author"`
	Added    []string     `json:"added"`
	Modified []string     `json:"modified"`
	Removed  []string     `json:"removed"`
}

// CommitAuthor holds the display name and email of a commit's author.
type CommitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
