package maintenance

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"archidoc/config"
	"archidoc/core/storage"
	"archidoc/core/store"
)

type stubSessions struct {
	store.SessionStore
	purged int64
}

func (s *stubSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.purged, nil
}

type stubHistory struct {
	store.HistoryStore
	cutoff time.Time
}

func (s *stubHistory) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return 0, nil
}

type stubDocuments struct {
	store.DocumentsStore
	paths []string
}

func (s *stubDocuments) ListFilePaths(ctx context.Context) ([]string, error) {
	return s.paths, nil
}

func TestRunOnceSweepsStaleOrphans(t *testing.T) {
	objects := storage.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	staleStamp := now.Add(-2 * time.Hour).UnixMilli()
	freshStamp := now.Add(-time.Minute).UnixMilli()
	referenced := "documents/100_0_kept.pdf"
	staleOrphan := fmtPath(staleStamp, "orphan.pdf")
	freshOrphan := fmtPath(freshStamp, "inflight.pdf")
	for _, p := range []string{referenced, staleOrphan, freshOrphan} {
		if err := objects.Upload(ctx, p, strings.NewReader("x"), 1, "application/pdf"); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}

	j := NewJanitor(&config.AppConfig{AuditRetention: 30},
		&stubSessions{purged: 2},
		&stubHistory{},
		&stubDocuments{paths: []string{referenced}},
		objects, nil)
	j.RunOnce(ctx)

	if !objects.Has(referenced) {
		t.Fatal("referenced object was swept")
	}
	if objects.Has(staleOrphan) {
		t.Fatal("stale orphan survived the sweep")
	}
	if !objects.Has(freshOrphan) {
		t.Fatal("in-flight upload was swept before the grace period")
	}
}

func TestRunOnceRetentionCutoff(t *testing.T) {
	history := &stubHistory{}
	j := NewJanitor(&config.AppConfig{AuditRetention: 30},
		&stubSessions{}, history, &stubDocuments{}, storage.NewMemoryStore(), nil)
	j.RunOnce(context.Background())

	wantAround := time.Now().UTC().AddDate(0, 0, -30)
	if d := history.cutoff.Sub(wantAround); d < -time.Minute || d > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", history.cutoff, wantAround)
	}
}

func TestUploadTimestamp(t *testing.T) {
	ms := int64(1717243200000)
	ts, ok := uploadTimestamp(fmtPath(ms, "a.pdf"))
	if !ok || ts.UnixMilli() != ms {
		t.Fatalf("got (%v, %v), want stamp back", ts, ok)
	}
	if _, ok := uploadTimestamp("documents/legacy.pdf"); ok {
		t.Fatal("non-prefixed path must not parse")
	}
	if _, ok := uploadTimestamp("no-slash"); ok {
		t.Fatal("bare name must not parse")
	}
}

func fmtPath(stamp int64, name string) string {
	return "documents/" + strconv.FormatInt(stamp, 10) + "_0_" + name
}
