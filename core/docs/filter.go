package docs

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"archidoc/core/store"
)

// Sort keys accepted by FilterAndSort.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortTitle  = "a-z"
	SortTitleR = "z-a"
)

// CategoryAll disables the category filter.
const CategoryAll int64 = 0

type FilterOptions struct {
	Search     string
	CategoryID int64
	SortKey    string
}

// ListVisible fetches the documents the acting profile may see. The store
// query already scopes by department; the in-memory pass re-applies the
// same rule as defense in depth, then nominal access grants are merged in.
func (s *Service) ListVisible(ctx context.Context, acting *store.UserProfile) ([]store.Document, error) {
	if acting == nil {
		return nil, ErrPermissionDenied
	}
	filter := store.DocumentFilter{}
	if acting.Role != RoleAdmin {
		filter.Department = acting.Department
	}
	rows, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	visible := rows[:0]
	seen := make(map[int64]struct{}, len(rows))
	for _, d := range rows {
		if !CanViewDepartmentScoped(acting.Role, acting.Department, d.IssuingDepartment) {
			continue
		}
		visible = append(visible, d)
		seen[d.ID] = struct{}{}
	}
	if acting.Role != RoleAdmin {
		grants, err := s.access.ListForUser(ctx, acting.ID)
		if err != nil {
			// Grants widen visibility only; their loss is not fatal.
			s.logger.Errorf("DOC list: access grants lookup failed user=%d: %v", acting.ID, err)
			return visible, nil
		}
		for _, g := range grants {
			if !g.CanView {
				continue
			}
			if _, ok := seen[g.DocumentID]; ok {
				continue
			}
			d, err := s.documents.Get(ctx, g.DocumentID)
			if err != nil || d == nil {
				continue
			}
			visible = append(visible, *d)
			seen[d.ID] = struct{}{}
		}
	}
	return visible, nil
}

// FilterAndSort applies search, category and ordering in memory. It is
// idempotent and never reorders equal-key elements between calls.
func FilterAndSort(documents []store.Document, opts FilterOptions) []store.Document {
	out := make([]store.Document, 0, len(documents))
	query := strings.ToLower(strings.TrimSpace(opts.Search))
	for _, d := range documents {
		if query != "" && !matchesQuery(&d, query) {
			continue
		}
		if opts.CategoryID != CategoryAll && d.CategoryID != opts.CategoryID {
			continue
		}
		out = append(out, d)
	}
	sortDocuments(out, opts.SortKey)
	return out
}

func matchesQuery(d *store.Document, query string) bool {
	for _, field := range []string{d.Title, d.ReferenceNumber, d.DocumentType, d.IssuingDepartment} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func sortDocuments(docs []store.Document, key string) {
	switch key {
	case SortOldest:
		sort.SliceStable(docs, func(i, j int) bool {
			return effectiveDate(&docs[i]).Before(effectiveDate(&docs[j]))
		})
	case SortTitle, SortTitleR:
		c := collate.New(language.French, collate.IgnoreCase)
		sort.SliceStable(docs, func(i, j int) bool {
			cmp := c.CompareString(docs[i].Title, docs[j].Title)
			if key == SortTitleR {
				return cmp > 0
			}
			return cmp < 0
		})
	default: // newest
		sort.SliceStable(docs, func(i, j int) bool {
			return effectiveDate(&docs[j]).Before(effectiveDate(&docs[i]))
		})
	}
}

// effectiveDate prefers the upload date and falls back to the document
// date when the upload date is missing.
func effectiveDate(d *store.Document) time.Time {
	if !d.UploadDate.IsZero() {
		return d.UploadDate
	}
	if d.DocumentDate != nil {
		return *d.DocumentDate
	}
	return d.UploadDate
}
