package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

// DataSource abstracts the data layer for MCP tools. LibrarySource and
// StoreSource read locally; HTTPClient reads through the REST API of a
// running fretlog server.
type DataSource interface {
	Overview(ctx context.Context) ([]models.ExerciseOverview, error)
	ExerciseStats(ctx context.Context, id uuid.UUID) (models.ExerciseStats, error)
	Chart(ctx context.Context, id uuid.UUID) ([]models.ChartPoint, error)
	DailySummary(ctx context.Context, date time.Time) (models.DailySummary, error)
	Inactive(ctx context.Context) ([]models.Exercise, error)
	History(ctx context.Context) ([]models.DailySummary, error)
}

// Compile-time checks.
var (
	_ DataSource = LibrarySource{}
	_ DataSource = (*StoreSource)(nil)
	_ DataSource = (*HTTPClient)(nil)
)

// LibrarySource serves an in-process library.
type LibrarySource struct {
	Lib *practice.Library
}

func (s LibrarySource) Overview(context.Context) ([]models.ExerciseOverview, error) {
	return s.Lib.Overview(), nil
}

func (s LibrarySource) ExerciseStats(_ context.Context, id uuid.UUID) (models.ExerciseStats, error) {
	return s.Lib.ExerciseStats(id)
}

func (s LibrarySource) Chart(_ context.Context, id uuid.UUID) ([]models.ChartPoint, error) {
	return s.Lib.Chart(id)
}

func (s LibrarySource) DailySummary(_ context.Context, date time.Time) (models.DailySummary, error) {
	return s.Lib.DailySummary(date), nil
}

func (s LibrarySource) Inactive(context.Context) ([]models.Exercise, error) {
	return s.Lib.InactiveExercises(), nil
}

func (s LibrarySource) History(context.Context) ([]models.DailySummary, error) {
	return s.Lib.History(), nil
}

// StoreSource loads a fresh read-only library from the store on every call,
// so a long-lived stdio server sees changes made by the HTTP server.
type StoreSource struct {
	store    practice.Store
	defaults models.Settings
	opts     []practice.Option
	log      *slog.Logger
}

// NewStoreSource wraps store. Nothing is ever written back to it. opts are
// passed to every library load.
func NewStoreSource(store practice.Store, defaults models.Settings, log *slog.Logger, opts ...practice.Option) *StoreSource {
	return &StoreSource{
		store:    practice.DryRun(store),
		defaults: defaults,
		opts:     opts,
		log:      slog.New(minLevelHandler{Handler: log.Handler(), min: slog.LevelError}),
	}
}

func (s *StoreSource) load(ctx context.Context) (LibrarySource, error) {
	lib, err := practice.New(ctx, s.store, s.defaults, s.log, s.opts...)
	if err != nil {
		return LibrarySource{}, err
	}
	return LibrarySource{Lib: lib}, nil
}

// minLevelHandler drops records below min. A reload per tool call would
// otherwise repeat the library's load and repair messages.
type minLevelHandler struct {
	slog.Handler
	min slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{Handler: h.Handler.WithGroup(name), min: h.min}
}

func (s *StoreSource) Overview(ctx context.Context) ([]models.ExerciseOverview, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.Overview(ctx)
}

func (s *StoreSource) ExerciseStats(ctx context.Context, id uuid.UUID) (models.ExerciseStats, error) {
	src, err := s.load(ctx)
	if err != nil {
		return models.ExerciseStats{}, err
	}
	return src.ExerciseStats(ctx, id)
}

func (s *StoreSource) Chart(ctx context.Context, id uuid.UUID) ([]models.ChartPoint, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.Chart(ctx, id)
}

func (s *StoreSource) DailySummary(ctx context.Context, date time.Time) (models.DailySummary, error) {
	src, err := s.load(ctx)
	if err != nil {
		return models.DailySummary{}, err
	}
	return src.DailySummary(ctx, date)
}

func (s *StoreSource) Inactive(ctx context.Context) ([]models.Exercise, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.Inactive(ctx)
}

func (s *StoreSource) History(ctx context.Context) ([]models.DailySummary, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.History(ctx)
}
