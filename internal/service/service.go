// Package service is the façade every crit operation goes through: it
// enforces the review/thread state machines, resolves agent identity,
// and is the only package that wires eventlog + store + sync + scm
// together into one call. Per spec.md §9 ("construct per operation"),
// Service holds only a repo root and preferences — it never keeps a
// long-lived store or SCM handle open across calls, mirroring bd's own
// per-command storage.New(...) construction rather than a daemon-style
// shared connection.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/critlabs/crit/internal/eventlog"
	"github.com/critlabs/crit/internal/identity"
	"github.com/critlabs/crit/internal/scm"
	"github.com/critlabs/crit/internal/store"
	"github.com/critlabs/crit/internal/sync"
	"github.com/critlabs/crit/internal/version"
)

// Service is the entry point for every crit operation.
type Service struct {
	RepoRoot         string
	SCMPref          scm.Preference
	IdentityOverride string

	// scmFactory resolves the SCM backend for each open() call. It
	// defaults to scm.Detect; tests substitute a func returning a
	// scm.Fake so they never shell out to a real git/jj binary.
	scmFactory func(ctx context.Context, repoRoot string, pref scm.Preference) (scm.SCM, error)
}

// New constructs a Service rooted at repoRoot.
func New(repoRoot string, pref scm.Preference, identityOverride string) *Service {
	return &Service{RepoRoot: repoRoot, SCMPref: pref, IdentityOverride: identityOverride, scmFactory: scm.Detect}
}

// session bundles the per-call handles a Service operation needs. It is
// always built by open() and torn down by close() before the operation
// returns.
type session struct {
	st  *store.Store
	scm scm.SCM
}

func (s *Service) close(sess *session) {
	if sess != nil && sess.st != nil {
		sess.st.Close()
	}
}

// open enforces version.RequireV2, opens the projection store,
// resolves the SCM backend, and runs an incremental sync so reads in
// this call observe the latest on-disk events. Every exported operation
// calls this first.
func (s *Service) open(ctx context.Context) (*session, error) {
	if err := s.checkVersion(); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(s.RepoRoot, ".crit", "index.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, internalf("open store", err)
	}

	factory := s.scmFactory
	if factory == nil {
		factory = scm.Detect
	}
	backend, err := factory(ctx, s.RepoRoot, s.SCMPref)
	if err != nil {
		st.Close()
		return nil, internalf("detect scm", err)
	}

	if _, err := sync.Sync(ctx, st, s.RepoRoot, sync.Incremental, ""); err != nil {
		st.Close()
		return nil, internalf("sync", err)
	}

	return &session{st: st, scm: backend}, nil
}

// checkVersion enforces version.RequireV2, translating its sentinel
// into the service package's own ErrV1NeedsMigration/ErrNotInitialized.
func (s *Service) checkVersion() error {
	if err := version.RequireV2(s.RepoRoot); err != nil {
		var needsMigration *version.NeedsMigration
		if errors.As(err, &needsMigration) {
			return fmt.Errorf("%w: %s", ErrV1NeedsMigration, needsMigration.Remediation)
		}
		return internalf("version detect", err)
	}

	gen, err := version.Detect(s.RepoRoot)
	if err != nil {
		return internalf("version detect", err)
	}
	if gen == version.Uninitialized {
		return ErrNotInitialized
	}
	return nil
}

// identity resolves the acting agent's name for this call.
func (s *Service) identity() string { return identity.Resolve(s.IdentityOverride) }

// appendEvent is the single place every write goes through: build the
// envelope and append it to reviewID's log.
func appendEvent(repoRoot, reviewID, author string, tag eventlog.Tag, data any) error {
	ev, err := eventlog.New(author, tag, data)
	if err != nil {
		return internalf("build event", err)
	}
	if err := eventlog.Append(repoRoot, reviewID, ev); err != nil {
		return internalf("append event", err)
	}
	return nil
}

// Init creates an empty v2 .crit/ layout: reviews/ directory,
// version file, and the store's (index.db, index.db-journal)
// .gitignore, matching the on-disk layout of spec.md.
func Init(repoRoot string) error {
	critDir := filepath.Join(repoRoot, ".crit")
	if err := os.MkdirAll(filepath.Join(critDir, "reviews"), 0o755); err != nil {
		return internalf("mkdir reviews", err)
	}
	if err := os.WriteFile(filepath.Join(critDir, "version"), []byte("2\n"), 0o644); err != nil {
		return internalf("write version", err)
	}
	gitignorePath := filepath.Join(critDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		content := "index.db\nindex.db-journal\n"
		if err := os.WriteFile(gitignorePath, []byte(content), 0o644); err != nil {
			return internalf("write .crit/.gitignore", err)
		}
	}
	return nil
}
