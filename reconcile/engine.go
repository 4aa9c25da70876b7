package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/thirteenf/storage"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one reconciliation run.
type Report struct {
	ReferenceCodes  int
	TitleSwaps      int64 // rows whose class title moved into the identifier
	IssuerRotations int64 // rows whose issuer name moved into the identifier
	ShortCodes      int
	ByMethod        map[Method]int // distinct codes repaired per method
	RowsRemapped    int64
	Duration        time.Duration
}

// Engine repairs malformed identifiers in persisted holdings.
//
// Stage one moves reference codes found in the class title or issuer name
// columns back into the identifier column. Stage two repairs identifiers
// shorter than nine characters. Each stage is one transaction; a failing
// stage is rolled back and aborts the run, since stage two assumes stage
// one completed.
type Engine struct {
	repo   storage.Repository
	source ReferenceSource
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(repo storage.Repository, source ReferenceSource, opts ...EngineOption) (*Engine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if source == nil {
		return nil, ErrReferenceSourceRequired
	}
	e := &Engine{repo: repo, source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "reconcile")
	return e, nil
}

// Run executes both stages.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	var ref ReferenceSet
	var triples []storage.IdentifierTriple
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ref, err = e.source.LoadValidIdentifiers(gctx)
		return err
	})
	g.Go(func() error {
		return e.repo.WithTransaction(gctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			triples, err = tx.IdentifierTriples(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ref.Len() == 0 {
		return nil, ErrEmptyReferenceSet
	}

	report := &Report{ReferenceCodes: ref.Len(), ByMethod: make(map[Method]int, len(Methods))}
	e.logger.Info("loaded reconciliation inputs", "reference_codes", ref.Len(), "triples", len(triples))

	swaps := DetectSwaps(triples, ref)
	e.logger.Info("detected column swaps", "titles", len(swaps.Titles), "issuers", len(swaps.Issuers))
	if !swaps.Empty() {
		err := e.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			if report.TitleSwaps, err = tx.SwapTitleIntoIdentifier(ctx, swaps.Titles); err != nil {
				return err
			}
			report.IssuerRotations, err = tx.RotateIssuerIntoIdentifier(ctx, swaps.Issuers)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: column swap: %w", ErrStageFailed, err)
		}
	}
	e.logger.Info("column swap stage complete", "title_swaps", report.TitleSwaps, "issuer_rotations", report.IssuerRotations)

	codes := ShortCodes(triples, ref)
	fixes := PlanShortCodeFixes(codes, ref)
	report.ShortCodes = len(fixes)
	mapping := make(map[string]string, len(fixes))
	for code, fix := range fixes {
		report.ByMethod[fix.Method]++
		mapping[code] = fix.Code
	}
	for _, m := range Methods {
		e.logger.Debug("short code repairs", "method", m, "codes", report.ByMethod[m])
	}
	if len(mapping) > 0 {
		err := e.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			report.RowsRemapped, err = tx.RemapIdentifiers(ctx, mapping)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: short code: %w", ErrStageFailed, err)
		}
	}

	report.Duration = time.Since(start)
	e.logger.Info("short code stage complete", "codes", report.ShortCodes, "rows", report.RowsRemapped,
		"zero_padded", report.ByMethod[MethodZeroPad])
	return report, nil
}
