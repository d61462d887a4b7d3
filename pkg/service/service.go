// Package service wires configuration, remote clients, the document store
// and the run journal together for the CLI commands.
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-backlog/pkg/config"
	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/importer"
	"github.com/mattsolo1/grove-backlog/pkg/journal"
	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

// LockTimeout bounds how long a command waits for another invocation
// holding the same document.
const LockTimeout = 5 * time.Second

// Service is shared by every command of one process.
type Service struct {
	Config       *config.Config
	Logger       *logrus.Entry
	Registry     *remote.Registry
	DocumentPath string

	journal *journal.Journal
}

// New creates a service. The registry builds clients from cfg on demand.
func New(cfg *config.Config, documentPath string, logger *logrus.Logger) (*Service, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if documentPath == "" {
		documentPath = document.DefaultPath
	}
	abs, err := filepath.Abs(documentPath)
	if err != nil {
		return nil, fmt.Errorf("resolve document path: %w", err)
	}

	s := &Service{
		Config:       cfg,
		Logger:       logrus.NewEntry(logger),
		DocumentPath: abs,
	}
	s.Registry = remote.NewRegistry(func(organization, project string) (*remote.Client, error) {
		opts := cfg.ClientOptions(organization, project)
		opts.Logger = s.Logger
		return remote.NewClient(opts)
	})
	return s, nil
}

// Client returns the cached client for the document's project, falling back
// to the configured organization and project.
func (s *Service) Client(doc *models.Document) (*remote.Client, error) {
	organization, project := s.Config.Organization, s.Config.Project
	if doc != nil {
		if doc.Project.Organization != "" {
			organization = doc.Project.Organization
		}
		if doc.Project.Project != "" {
			project = doc.Project.Project
		}
	}
	return s.Registry.Get(organization, project)
}

// Syncer returns a syncer bound to the document's project.
func (s *Service) Syncer(doc *models.Document) (*sync.Syncer, error) {
	client, err := s.Client(doc)
	if err != nil {
		return nil, err
	}
	return sync.NewSyncer(client, s.Config.Defaults, s.Logger), nil
}

// Importer returns an importer for organization/project, defaulting both
// from configuration.
func (s *Service) Importer(organization, project string) (*importer.Importer, models.Project, error) {
	p := models.Project{Organization: organization, Project: project}
	if p.Organization == "" {
		p.Organization = s.Config.Organization
	}
	if p.Project == "" {
		p.Project = s.Config.Project
	}
	client, err := s.Registry.Get(p.Organization, p.Project)
	if err != nil {
		return nil, p, err
	}
	p.AreaPath = s.Config.Defaults.AreaPath
	p.IterationPath = s.Config.Defaults.IterationPath
	return importer.New(client, s.Logger), p, nil
}

// Handle is a loaded document held under its file lock.
type Handle struct {
	Doc    *models.Document
	Path   string
	unlock func() error
}

// Save writes the document back.
func (h *Handle) Save() error {
	return document.Save(h.Path, h.Doc)
}

// Close releases the lock.
func (h *Handle) Close() error {
	if h.unlock == nil {
		return nil
	}
	err := h.unlock()
	h.unlock = nil
	return err
}

// OpenDocument locks, loads and validates the document. Validation failures
// are returned as tree.ValidationErrors before any remote call is made.
func (s *Service) OpenDocument(ctx context.Context) (*Handle, error) {
	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()
	unlock, err := document.Lock(lockCtx, s.DocumentPath)
	if err != nil {
		return nil, err
	}

	doc, err := document.Load(s.DocumentPath)
	if err != nil {
		unlock()
		return nil, err
	}
	if errs := tree.Validate(doc); len(errs) > 0 {
		unlock()
		return nil, errs
	}
	return &Handle{Doc: doc, Path: s.DocumentPath, unlock: unlock}, nil
}

// Journal opens the run journal in the data directory on first use.
func (s *Service) Journal() (*journal.Journal, error) {
	if s.journal != nil {
		return s.journal, nil
	}
	j, err := journal.Open(s.Config.DataDir)
	if err != nil {
		return nil, err
	}
	s.journal = j
	return j, nil
}

// Record stores a finished run. Journal failures are logged, never fatal.
func (s *Service) Record(command string, dryRun bool, started time.Time, entries []journal.Entry) {
	j, err := s.Journal()
	if err != nil {
		s.Logger.WithError(err).Warn("run journal unavailable")
		return
	}
	run := &journal.Run{
		Command:   command,
		Document:  s.DocumentPath,
		DryRun:    dryRun,
		StartedAt: started,
	}
	if err := j.Record(run, entries); err != nil {
		s.Logger.WithError(err).WithField("command", command).Warn("failed to record run")
		return
	}
	s.Logger.WithFields(logrus.Fields{"run": run.ID, "total": run.Total, "failed": run.Failed}).Debug("run recorded")
}

// Close releases the journal.
func (s *Service) Close() error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
