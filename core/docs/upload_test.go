package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"archidoc/config"
)

func newTestUploader(env *testEnv) *Uploader {
	u := NewUploader(env.svc, config.UploadConfig{}, nil)
	u.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return u
}

func batchFile(name, content string) BatchFile {
	return BatchFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Content:     strings.NewReader(content),
	}
}

func TestUploadMultipleSuffixesTitlesAndRefs(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{
		Title:             "Marché public",
		ReferenceNumber:   "MP-2024",
		DocumentType:      "contrat",
		CategoryID:        2,
		IssuingDepartment: "Finances",
	}
	files := []BatchFile{
		batchFile("lot1.pdf", "aaa"),
		batchFile("lot2.pdf", "bbb"),
		batchFile("lot3.pdf", "ccc"),
	}

	results, err := u.UploadMultiple(context.Background(), fields, files, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if !r.Success {
			t.Fatalf("file %d failed: %s", i, r.Error)
		}
		doc, _ := env.docs.Get(context.Background(), r.DocumentID)
		wantTitle := fmt.Sprintf("Marché public - %d", i+1)
		wantRef := fmt.Sprintf("MP-2024-%d", i+1)
		if doc.Title != wantTitle {
			t.Errorf("file %d title = %q, want %q", i, doc.Title, wantTitle)
		}
		if doc.ReferenceNumber != wantRef {
			t.Errorf("file %d ref = %q, want %q", i, doc.ReferenceNumber, wantRef)
		}
	}
}

func TestUploadSingleFileKeepsTitleVerbatim(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "Note interne", ReferenceNumber: "NI-7", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}

	results, err := u.UploadMultiple(context.Background(), fields, []BatchFile{batchFile("note.pdf", "x")}, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	doc, _ := env.docs.Get(context.Background(), results[0].DocumentID)
	if doc.Title != "Note interne" || doc.ReferenceNumber != "NI-7" {
		t.Fatalf("single upload must not suffix: title=%q ref=%q", doc.Title, doc.ReferenceNumber)
	}
}

func TestUploadMultipleEmptyRefNotSuffixed(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "Sans référence", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}

	results, err := u.UploadMultiple(context.Background(), fields, []BatchFile{
		batchFile("a.pdf", "x"),
		batchFile("b.pdf", "y"),
	}, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	for i, r := range results {
		doc, _ := env.docs.Get(context.Background(), r.DocumentID)
		if doc.ReferenceNumber != "" {
			t.Errorf("file %d ref = %q, want empty", i, doc.ReferenceNumber)
		}
	}
}

func TestUploadMultipleContinuesPastFailures(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "Dossier", DocumentType: "dossier", CategoryID: 1, IssuingDepartment: "Finances"}
	oversized := BatchFile{Name: "huge.pdf", Size: 21 << 20, ContentType: "application/pdf", Content: strings.NewReader("")}
	files := []BatchFile{
		batchFile("ok1.pdf", "x"),
		oversized,
		batchFile("ok2.pdf", "y"),
	}

	results, err := u.UploadMultiple(context.Background(), fields, files, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Success || !results[2].Success {
		t.Fatalf("valid files must succeed around the failing one: %+v", results)
	}
	if results[1].Success || results[1].ErrorKind != ErrKindValidation {
		t.Fatalf("oversized file: %+v, want validation_error", results[1])
	}
	if results[1].FileName != "huge.pdf" {
		t.Fatalf("result order broken: slot 1 is %q", results[1].FileName)
	}
	if s, f := Summarize(results); s != 2 || f != 1 {
		t.Fatalf("summary = (%d, %d), want (2, 1)", s, f)
	}
}

func TestUploadRejectsBadExtensionAndEmptyFile(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "T", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}
	files := []BatchFile{
		batchFile("script.exe", "mz"),
		{Name: "empty.pdf", Size: 0, Content: strings.NewReader("")},
	}

	results, err := u.UploadMultiple(context.Background(), fields, files, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	for i, r := range results {
		if r.Success || r.ErrorKind != ErrKindValidation {
			t.Errorf("file %d: %+v, want validation_error", i, r)
		}
	}
}

func TestUploadBatchLevelRejections(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "T", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}

	if _, err := u.UploadMultiple(context.Background(), fields, nil, profile(3, RoleAdmin, "")); err == nil {
		t.Fatal("empty batch must be rejected")
	}
	six := make([]BatchFile, 6)
	for i := range six {
		six[i] = batchFile(fmt.Sprintf("f%d.pdf", i), "x")
	}
	if _, err := u.UploadMultiple(context.Background(), fields, six, profile(3, RoleAdmin, "")); err == nil {
		t.Fatal("oversized batch must be rejected")
	}
	if _, err := u.UploadMultiple(context.Background(), fields, six[:1], profile(3, RoleUser, "Finances")); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestUploadPathsAreDistinctForTwinNames(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	fields := BatchFields{Title: "T", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}

	results, err := u.UploadMultiple(context.Background(), fields, []BatchFile{
		batchFile("annexe.pdf", "x"),
		batchFile("annexe.pdf", "y"),
	}, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	a, _ := env.docs.Get(context.Background(), results[0].DocumentID)
	b, _ := env.docs.Get(context.Background(), results[1].DocumentID)
	if a.FilePath == b.FilePath {
		t.Fatalf("twin filenames collided on %q", a.FilePath)
	}
	if !env.objects.Has(a.FilePath) || !env.objects.Has(b.FilePath) {
		t.Fatal("both objects must be stored")
	}
}

func TestUploadClassifiesInsertFailure(t *testing.T) {
	env := newTestEnv()
	u := newTestUploader(env)
	env.docs.failCreate = errors.New("disk full")
	fields := BatchFields{Title: "T", DocumentType: "note", CategoryID: 1, IssuingDepartment: "Finances"}

	results, err := u.UploadMultiple(context.Background(), fields, []BatchFile{batchFile("a.pdf", "x")}, profile(3, RoleAdmin, ""))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if results[0].Success || results[0].ErrorKind != ErrKindInsert {
		t.Fatalf("result = %+v, want insert_error", results[0])
	}
	// The compensating removal ran, so no orphan remains.
	if paths, _ := env.objects.ListPaths(context.Background()); len(paths) != 0 {
		t.Fatalf("orphans left behind: %v", paths)
	}
}
