// Package ops implements the gallery operations shared by the HTTP API,
// the CLI and the MCP server.
//
// Mutations run one at a time: each holds the service lock for the whole
// validate, derive, normalize, persist, project sequence. Reads take no lock
// and may observe the state before or after a concurrent mutation.
package ops

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/gallery"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/projector"
	"github.com/hpungsan/showcase/internal/store"
	"github.com/hpungsan/showcase/internal/validate"
)

// History is the mutation log the service appends to.
type History interface {
	Record(ctx context.Context, action journal.Action, target, detail string) (journal.Entry, error)
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// MutationHook is called after every successful mutation.
type MutationHook func(ctx context.Context, action journal.Action)

// Service runs gallery operations against one data directory.
type Service struct {
	mu sync.Mutex

	store     *store.Store
	projector *projector.Projector
	validator *validate.Validator
	history   History
	hook      MutationHook
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records each successful mutation in h.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithMutationHook registers fn to observe successful mutations.
func WithMutationHook(fn MutationHook) Option {
	return func(s *Service) { s.hook = fn }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service over st. proj must be the projector st writes through.
func New(st *store.Store, proj *projector.Projector, opts ...Option) *Service {
	s := &Service{
		store:     st,
		projector: proj,
		validator: validate.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("ops")
	return s
}

// SketchView is a stored sketch plus its derived slug.
type SketchView struct {
	Slug string `json:"slug"`
	gallery.Sketch
}

func viewOf(sk gallery.Sketch) SketchView {
	return SketchView{Slug: sk.Identity().String(), Sketch: sk}
}

// DeleteOutput is returned by the delete operations.
type DeleteOutput struct {
	OK bool `json:"ok"`
}

// committed journals and reports a mutation. Journal failures never fail the
// mutation; the files are already written. The journal write is detached from
// ctx cancellation so a client disconnect cannot drop the entry.
func (s *Service) committed(ctx context.Context, action journal.Action, target, detail string) {
	s.logger.Info("mutation",
		zap.String("action", string(action)),
		zap.String("target", target),
		zap.String("detail", detail))

	if s.history != nil {
		if _, err := s.history.Record(context.WithoutCancel(ctx), action, target, detail); err != nil {
			s.logger.Warn("failed to journal mutation",
				zap.String("action", string(action)), zap.String("target", target), zap.Error(err))
		}
	}
	if s.hook != nil {
		s.hook(ctx, action)
	}
}

// clean strips script blocks and NULs, then trims whitespace.
func clean(v string) string {
	return strings.TrimSpace(validate.Sanitize(v))
}
