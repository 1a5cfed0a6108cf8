package maintenance

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"archidoc/config"
	"archidoc/core/storage"
	"archidoc/core/store"
	"archidoc/core/utils"
)

// Janitor is the nightly housekeeping job: it drops expired sessions,
// trims audit history past retention and sweeps storage objects that no
// document row references anymore (orphans left by failed rollbacks).
type Janitor struct {
	cfg       *config.AppConfig
	sessions  store.SessionStore
	history   store.HistoryStore
	documents store.DocumentsStore
	objects   storage.ObjectStore
	logger    *utils.Logger
	cron      *cron.Cron

	// Orphans younger than this are spared: an upload may still be
	// between object write and row insert.
	orphanGrace time.Duration
}

func NewJanitor(cfg *config.AppConfig, sessions store.SessionStore, history store.HistoryStore, documents store.DocumentsStore, objects storage.ObjectStore, logger *utils.Logger) *Janitor {
	return &Janitor{
		cfg:         cfg,
		sessions:    sessions,
		history:     history,
		documents:   documents,
		objects:     objects,
		logger:      logger,
		orphanGrace: time.Hour,
	}
}

// Start schedules the job per the configured cron spec and returns
// immediately. It is a no-op when the janitor is disabled.
func (j *Janitor) Start() error {
	if j.cfg != nil && !j.cfg.Janitor.Enabled {
		j.logger.Printf("JANITOR disabled")
		return nil
	}
	spec := "30 2 * * *"
	if j.cfg != nil && j.cfg.Janitor.Spec != "" {
		spec = j.cfg.Janitor.Spec
	}
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		j.RunOnce(ctx)
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Printf("JANITOR scheduled spec=%q", spec)
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// RunOnce executes one housekeeping pass. Each task is independent; a
// failure in one is logged and the others still run.
func (j *Janitor) RunOnce(ctx context.Context) {
	now := utils.NowUTC()

	if n, err := j.sessions.DeleteExpired(ctx, now); err != nil {
		j.logger.Errorf("JANITOR sessions: %v", err)
	} else if n > 0 {
		j.logger.Printf("JANITOR purged %d expired sessions", n)
	}

	retention := 365
	if j.cfg != nil && j.cfg.AuditRetention > 0 {
		retention = j.cfg.AuditRetention
	}
	cutoff := now.AddDate(0, 0, -retention)
	if n, err := j.history.TrimOlderThan(ctx, cutoff); err != nil {
		j.logger.Errorf("JANITOR history: %v", err)
	} else if n > 0 {
		j.logger.Printf("JANITOR trimmed %d history entries older than %s", n, cutoff.Format("2006-01-02"))
	}

	if err := j.sweepOrphans(ctx, now); err != nil {
		j.logger.Errorf("JANITOR orphan sweep: %v", err)
	}
}

func (j *Janitor) sweepOrphans(ctx context.Context, now time.Time) error {
	lister, ok := j.objects.(storage.PathLister)
	if !ok {
		return nil
	}
	stored, err := lister.ListPaths(ctx)
	if err != nil {
		return err
	}
	referenced, err := j.documents.ListFilePaths(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		known[p] = struct{}{}
	}
	var orphans []string
	for _, p := range stored {
		if _, ok := known[p]; ok {
			continue
		}
		if ts, ok := uploadTimestamp(p); ok && now.Sub(ts) < j.orphanGrace {
			continue
		}
		orphans = append(orphans, p)
	}
	if len(orphans) == 0 {
		return nil
	}
	if err := j.objects.Remove(ctx, orphans...); err != nil {
		return err
	}
	j.logger.Printf("JANITOR removed %d orphaned objects", len(orphans))
	return nil
}

// uploadTimestamp recovers the batch timestamp encoded in upload paths of
// the form documents/<unix-milli>_<index>_<name>.
func uploadTimestamp(objectPath string) (time.Time, bool) {
	base := objectPath
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	stamp, _, ok := strings.Cut(base, "_")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
