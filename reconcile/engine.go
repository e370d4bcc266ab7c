package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/library"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

var meter = otel.Meter("github.com/tnqbao/gau-ads-orchestrator/reconcile")

type Library interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Creative, error)
	InsertNew(ctx context.Context, tempPath, fingerprint string, meta library.Metadata) (*entity.Creative, bool, error)
	Heal(ctx context.Context, creative *entity.Creative, tempPath string) (bool, error)
	Discard(ctx context.Context, tempPath string)
}

type Ledger interface {
	GetRecord(ctx context.Context, creativeID uuid.UUID, adAccountID string) (*entity.AccountUpload, error)
}

// UploadedFile is a file received by the intake, still at its temp location.
type UploadedFile struct {
	TempPath     string
	OriginalName string
	ContentType  string
	ByteSize     int64
	BatchGroupID *uuid.UUID
}

// Result tells the caller what to do next:
//   - IsDuplicate: skip the remote upload, FacebookIDs holds the stored identifiers.
//   - IsNew or neither flag: upload LibraryPath, then record it in the ledger.
type Result struct {
	IsDuplicate bool
	IsNew       bool
	Creative    *entity.Creative
	FacebookIDs *entity.RemoteIDs
	LibraryPath string
}

func (r *Result) NeedsUpload() bool { return !r.IsDuplicate }

type Engine struct {
	library  Library
	ledger   Ledger
	logger   *infra.LoggerClient
	outcomes metric.Int64Counter
}

func NewEngine(lib Library, ledger Ledger, logger *infra.LoggerClient) *Engine {
	outcomes, _ := meter.Int64Counter("reconcile.outcomes",
		metric.WithDescription("Creative reconciliation outcomes by kind"))
	return &Engine{library: lib, ledger: ledger, logger: logger, outcomes: outcomes}
}

// Reconcile hashes the file, stores it in the library when unseen and checks the ledger
// for the target account. The temp file is always either moved into the library or discarded.
func (e *Engine) Reconcile(ctx context.Context, file UploadedFile, adAccountID string) (*Result, error) {
	fingerprint, err := utils.Fingerprint(file.TempPath)
	if err != nil {
		return nil, err
	}

	creative, err := e.library.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fingerprint %s: %w", fingerprint, err)
	}

	if creative == nil {
		stored, inserted, err := e.library.InsertNew(ctx, file.TempPath, fingerprint, library.Metadata{
			OriginalName: file.OriginalName,
			ContentType:  file.ContentType,
			ByteSize:     file.ByteSize,
			BatchGroupID: file.BatchGroupID,
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			e.count(ctx, "new")
			e.logger.InfoWithContextf(ctx, "[Reconcile] New creative %s for %s", stored.ID, adAccountID)
			return &Result{
				IsNew:       true,
				Creative:    stored,
				LibraryPath: stored.CanonicalFilePath,
			}, nil
		}
		// Lost the insertion race; the store already discarded our temp file.
		return e.known(ctx, stored, adAccountID, "")
	}

	return e.known(ctx, creative, adAccountID, file.TempPath)
}

// known handles a fingerprint that is already in the library. tempPath is empty
// when the upload has already been discarded.
func (e *Engine) known(ctx context.Context, creative *entity.Creative, adAccountID, tempPath string) (*Result, error) {
	if tempPath != "" {
		healed, err := e.library.Heal(ctx, creative, tempPath)
		if err != nil {
			return nil, err
		}
		if !healed {
			e.library.Discard(ctx, tempPath)
		}
	}

	record, err := e.ledger.GetRecord(ctx, creative.ID, adAccountID)
	if err != nil {
		return nil, err
	}

	if record != nil {
		ids := record.RemoteIDs()
		e.count(ctx, "duplicate")
		e.logger.InfoWithContextf(ctx, "[Reconcile] Creative %s already uploaded to %s, skipping", creative.ID, adAccountID)
		return &Result{
			IsDuplicate: true,
			Creative:    creative,
			FacebookIDs: &ids,
			LibraryPath: creative.CanonicalFilePath,
		}, nil
	}

	e.count(ctx, "reuse")
	e.logger.InfoWithContextf(ctx, "[Reconcile] Creative %s known, first upload to %s", creative.ID, adAccountID)
	return &Result{
		Creative:    creative,
		LibraryPath: creative.CanonicalFilePath,
	}, nil
}

func (e *Engine) count(ctx context.Context, outcome string) {
	if e.outcomes != nil {
		e.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// Discard drops an upload that never made it into reconciliation.
func (e *Engine) Discard(ctx context.Context, tempPath string) {
	e.library.Discard(ctx, tempPath)
}
