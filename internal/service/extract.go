package service

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hookbridge/hookbridge/internal/domain"
	"github.com/hookbridge/hookbridge/internal/port"
)

// Only regular heads, i.e. branches, produce change records. Tag pushes,
// pull-request refs and the like are filtered, not rejected.
var branchRef = regexp.MustCompile(`^refs/heads/(.+)$`)

// An all-zero after revision is the provider's sentinel for a deleted ref.
var nullRevision = regexp.MustCompile(`^0+$`)

// ValidateEvent checks the fields every pipeline stage depends on. Run
// before mirror sync so a payload without a repository identity never
// reaches the git layer.
func ValidateEvent(ev *domain.PushEvent) error {
	if ev == nil || ev.Ref == "" || ev.Repository.Name == "" || ev.Repository.Owner.Name == "" {
		return fmt.Errorf("%w: missing ref or repository identity", port.ErrMalformedPayload)
	}
	return nil
}

// ExtractChanges turns a push event into the ordered batch of change records
// to hand to the coordinator. The provider's commit order is preserved
// verbatim; it defines delivery order downstream. An empty result is a valid
// "nothing to deliver", never an error.
func ExtractChanges(ev *domain.PushEvent) ([]domain.ChangeRecord, error) {
	if err := ValidateEvent(ev); err != nil {
		return nil, err
	}

	match := branchRef.FindStringSubmatch(ev.Ref)
	if match == nil {
		slog.Info("ignoring ref: not a branch", "ref", ev.Ref)
		return nil, nil
	}
	branch := match[1]

	if nullRevision.MatchString(ev.After) {
		slog.Info("branch deleted, ignoring", "branch", branch)
		return nil, nil
	}

	records := make([]domain.ChangeRecord, 0, len(ev.Commits))
	for _, commit := range ev.Commits {
		if commit.ID == "" {
			return nil, fmt.Errorf("%w: commit without id", port.ErrMalformedPayload)
		}
		records = append(records, domain.ChangeRecord{
			Revision: commit.ID,
			Comment:  commit.Message,
			Branch:   branch,
			Author:   fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
			Files:    touchedFiles(commit),
			Links:    []string{commit.URL},
		})
	}
	return records, nil
}

// touchedFiles unions a commit's added, modified and removed paths,
// deduplicated in first-seen order.
func touchedFiles(commit domain.Commit) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, group := range [][]string{commit.Added, commit.Modified, commit.Removed} {
		for _, path := range group {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}
	return files
}
