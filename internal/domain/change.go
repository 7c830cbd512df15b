package domain

// ChangeRecord is the unit of work submitted to the build coordinator: one
// commit's metadata and the set of files it touched. Records are built once
// by the extractor and never mutated afterwards.
//
// JSON tags match the parameter names of the coordinator's addChange call.
type ChangeRecord struct {
	Revision string   `json:"revision"`
	Comment  string   `json:"comments"`
	Branch   string   `json:"branch"`
	Author   string   `json:"who"`
	Files    []string `json:"files"`
	Links    []string `json:"links"`
}

// ShortRevision returns the abbreviated commit identifier used in logs.
func (r ChangeRecord) ShortRevision() string {
	if len(r.Revision) <= 8 {
		return r.Revision
	}
	return r.Revision[:8]
}
