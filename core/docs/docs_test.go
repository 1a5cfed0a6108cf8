package docs

import (
	"context"
	"sort"
	"time"

	"archidoc/core/storage"
	"archidoc/core/store"
)

// In-memory store fakes shared by the package tests.

type fakeDocs struct {
	nextID     int64
	rows       map[int64]store.Document
	failCreate error
	created    []store.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{nextID: 1, rows: map[int64]store.Document{}}
}

func (f *fakeDocs) Create(ctx context.Context, d *store.Document) (int64, error) {
	if f.failCreate != nil {
		return 0, f.failCreate
	}
	d.ID = f.nextID
	f.nextID++
	f.rows[d.ID] = *d
	f.created = append(f.created, *d)
	return d.ID, nil
}

func (f *fakeDocs) Update(ctx context.Context, id int64, upd *store.DocumentUpdate, modifiedBy int64, at time.Time) error {
	d, ok := f.rows[id]
	if !ok {
		return nil
	}
	if upd.Title != nil {
		d.Title = *upd.Title
	}
	if upd.Description != nil {
		d.Description = *upd.Description
	}
	if upd.IssuingDepartment != nil {
		d.IssuingDepartment = *upd.IssuingDepartment
	}
	if upd.Status != nil {
		d.Status = *upd.Status
	}
	d.LastModified = &at
	d.ModifiedBy = &modifiedBy
	f.rows[id] = d
	return nil
}

func (f *fakeDocs) Delete(ctx context.Context, id int64) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeDocs) Get(ctx context.Context, id int64) (*store.Document, error) {
	d, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeDocs) List(ctx context.Context, filter store.DocumentFilter) ([]store.Document, error) {
	var res []store.Document
	for _, d := range f.rows {
		if filter.Department != "" && d.IssuingDepartment != filter.Department {
			continue
		}
		if filter.CategoryID > 0 && d.CategoryID != filter.CategoryID {
			continue
		}
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (f *fakeDocs) ListFilePaths(ctx context.Context) ([]string, error) {
	var res []string
	for _, d := range f.rows {
		res = append(res, d.FilePath)
	}
	sort.Strings(res)
	return res, nil
}

func (f *fakeDocs) CountByDepartment(ctx context.Context) (map[string]int64, error) {
	res := map[string]int64{}
	for _, d := range f.rows {
		res[d.IssuingDepartment]++
	}
	return res, nil
}

type fakeAccess struct {
	entries map[[2]int64]store.AccessEntry
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{entries: map[[2]int64]store.AccessEntry{}}
}

func (f *fakeAccess) Grant(ctx context.Context, e *store.AccessEntry) error {
	f.entries[[2]int64{e.DocumentID, e.UserID}] = *e
	return nil
}

func (f *fakeAccess) Revoke(ctx context.Context, documentID, userID int64) error {
	delete(f.entries, [2]int64{documentID, userID})
	return nil
}

func (f *fakeAccess) Get(ctx context.Context, documentID, userID int64) (*store.AccessEntry, error) {
	e, ok := f.entries[[2]int64{documentID, userID}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeAccess) ListForDocument(ctx context.Context, documentID int64) ([]store.AccessEntry, error) {
	var res []store.AccessEntry
	for _, e := range f.entries {
		if e.DocumentID == documentID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeAccess) ListForUser(ctx context.Context, userID int64) ([]store.AccessEntry, error) {
	var res []store.AccessEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			res = append(res, e)
		}
	}
	return res, nil
}

type fakeHistory struct {
	entries    []store.HistoryEntry
	failAppend error
}

func (f *fakeHistory) Append(ctx context.Context, e *store.HistoryEntry) error {
	if f.failAppend != nil {
		return f.failAppend
	}
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistory) ListForDocument(ctx context.Context, documentID int64) ([]store.HistoryEntry, error) {
	var res []store.HistoryEntry
	for _, e := range f.entries {
		if e.DocumentID != nil && *e.DocumentID == documentID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeHistory) ListRecent(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	return f.entries, nil
}

func (f *fakeHistory) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) actions() []string {
	var res []string
	for _, e := range f.entries {
		res = append(res, e.ActionType)
	}
	return res
}

type testEnv struct {
	svc     *Service
	docs    *fakeDocs
	access  *fakeAccess
	history *fakeHistory
	objects *storage.MemoryStore
}

func newTestEnv() *testEnv {
	env := &testEnv{
		docs:    newFakeDocs(),
		access:  newFakeAccess(),
		history: &fakeHistory{},
		objects: storage.NewMemoryStore(),
	}
	env.svc = NewService(env.docs, env.access, env.history, env.objects, nil)
	return env
}

func profile(id int64, role, dept string) *store.UserProfile {
	return &store.UserProfile{
		ID:         id,
		Username:   "tester",
		Role:       role,
		Department: dept,
		Status:     store.UserStatusActive,
	}
}
