package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
	"github.com/tnqbao/gau-ads-orchestrator/reconcile"
	"github.com/tnqbao/gau-ads-orchestrator/session"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

var meter = otel.Meter("github.com/tnqbao/gau-ads-orchestrator/upload")

// Gateway pushes library files to Meta.
type Gateway interface {
	UploadImage(ctx context.Context, filePath, adAccountID, token string) (string, error)
	UploadVideo(ctx context.Context, filePath, adAccountID, token string, progress provider.ProgressFunc) (string, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, file reconcile.UploadedFile, adAccountID string) (*reconcile.Result, error)
	Discard(ctx context.Context, tempPath string)
}

type Ledger interface {
	RecordUpload(ctx context.Context, creativeID uuid.UUID, adAccountID string, ids entity.RemoteIDs) error
}

type DriveFetcher interface {
	Fetch(ctx context.Context, fileID, oauthToken string) (*provider.DriveFile, error)
}

// Status of one file in a multi-file upload.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage windows of the overall per-file progress.
const (
	stageReconcileEnd = 10.0
	stageUploadEnd    = 95.0
)

type FileResult struct {
	FileName    string            `json:"file_name"`
	Status      Status            `json:"status"`
	Type        entity.MimeClass  `json:"type,omitempty"`
	CreativeID  string            `json:"creative_id,omitempty"`
	RemoteIDs   *entity.RemoteIDs `json:"remote_ids,omitempty"`
	IsNew       bool              `json:"is_new"`
	IsDuplicate bool              `json:"is_duplicate"`
	Error       string            `json:"error,omitempty"`
}

// Summary is sent as the completion event of a session.
type Summary struct {
	SessionID string       `json:"session_id"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}

// Request is one multi-file upload to a single ad account.
type Request struct {
	AdAccountID string
	AccessToken string
	UserID      string
	Files       []reconcile.UploadedFile
}

// DriveImportRequest pulls files from Google Drive and uploads them like a normal request.
type DriveImportRequest struct {
	AdAccountID  string
	AccessToken  string
	OAuthToken   string
	UserID       string
	FileIDs      []string
	BatchGroupID *uuid.UUID
}

// item is a file that may still need to be fetched before it can be reconciled.
type item struct {
	name  string
	file  reconcile.UploadedFile
	fetch func(ctx context.Context) (reconcile.UploadedFile, error)
}

type Service struct {
	reconciler  Reconciler
	gateway     Gateway
	ledger      Ledger
	drive       DriveFetcher
	sessions    *session.Registry
	concurrency int
	logger      *infra.LoggerClient
	remoteCalls metric.Int64Counter
}

func NewService(reconciler Reconciler, gateway Gateway, ledger Ledger, drive DriveFetcher, sessions *session.Registry, concurrency int, logger *infra.LoggerClient) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	remoteCalls, _ := meter.Int64Counter("upload.remote_calls",
		metric.WithDescription("Remote creative uploads by type and outcome"))
	return &Service{
		reconciler:  reconciler,
		gateway:     gateway,
		ledger:      ledger,
		drive:       drive,
		sessions:    sessions,
		concurrency: concurrency,
		logger:      logger,
		remoteCalls: remoteCalls,
	}
}

// Start creates a session and processes the files in the background.
func (s *Service) Start(ctx context.Context, req Request) *session.Session {
	items := make([]item, len(req.Files))
	for i, f := range req.Files {
		items[i] = item{name: f.OriginalName, file: f}
	}
	return s.startItems(ctx, req, items)
}

// StartDriveImport creates a session and fetches then uploads each Drive file in the background.
func (s *Service) StartDriveImport(ctx context.Context, req DriveImportRequest) *session.Session {
	items := make([]item, len(req.FileIDs))
	for i, fileID := range req.FileIDs {
		fileID := fileID
		items[i] = item{
			name: fileID,
			fetch: func(ctx context.Context) (reconcile.UploadedFile, error) {
				df, err := s.drive.Fetch(ctx, fileID, req.OAuthToken)
				if err != nil {
					return reconcile.UploadedFile{}, err
				}
				return reconcile.UploadedFile{
					TempPath:     df.TempPath,
					OriginalName: df.Name,
					ContentType:  df.MimeType,
					ByteSize:     df.Size,
					BatchGroupID: req.BatchGroupID,
				}, nil
			},
		}
	}
	return s.startItems(ctx, Request{AdAccountID: req.AdAccountID, AccessToken: req.AccessToken, UserID: req.UserID}, items)
}

func (s *Service) startItems(ctx context.Context, req Request, items []item) *session.Session {
	sess := s.sessions.Create(utils.NormalizeAdAccountID(req.AdAccountID), req.UserID, len(items))
	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.ErrorWithContextf(bg, fmt.Errorf("%v", r), "[Upload] Session %s panicked", sess.ID())
				sess.Fail(apperr.GenericUserMessage)
			}
		}()
		s.process(bg, req, items, sess)
	}()
	return sess
}

// Process runs a multi-file upload synchronously. Files are handled in groups of the
// configured concurrency; a failing file never aborts the others.
func (s *Service) Process(ctx context.Context, req Request, sess *session.Session) Summary {
	items := make([]item, len(req.Files))
	for i, f := range req.Files {
		items[i] = item{name: f.OriginalName, file: f}
	}
	return s.process(ctx, req, items, sess)
}

func (s *Service) process(ctx context.Context, req Request, items []item, sess *session.Session) Summary {
	results := make([]FileResult, len(items))
	pushes := &requestPushes{calls: map[uuid.UUID]*pushCall{}}

	offset := 0
	for _, group := range batch.Chunk(items, s.concurrency) {
		g, gctx := errgroup.WithContext(ctx)
		for i, it := range group {
			idx := offset + i
			it := it
			g.Go(func() error {
				results[idx] = s.processItem(gctx, req, it, sess, pushes)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.logger.ErrorWithContextf(ctx, err, "[Upload] File group at %d for %s did not finish cleanly", offset, req.AdAccountID)
		}
		offset += len(group)
	}

	summary := Summary{Total: len(results), Results: results}
	if sess != nil {
		summary.SessionID = sess.ID()
	}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			summary.Succeeded++
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	s.logger.InfoWithContextf(ctx, "[Upload] Finished %d files for %s: %d succeeded, %d skipped, %d failed",
		summary.Total, req.AdAccountID, summary.Succeeded, summary.Skipped, summary.Failed)
	if sess != nil {
		sess.Complete(summary)
	}
	return summary
}

func (s *Service) processItem(ctx context.Context, req Request, it item, sess *session.Session, pushes *requestPushes) FileResult {
	file := it.file
	if it.fetch != nil {
		fetched, err := it.fetch(ctx)
		if err != nil {
			return s.fail(ctx, sess, FileResult{FileName: it.name}, err)
		}
		file = fetched
	}

	result := s.uploadFile(ctx, req, file, sess, pushes)
	if result.Status == StatusFailed {
		if sess != nil {
			sess.FileFailed(result.FileName, result.Error, result)
		}
		return result
	}
	if sess != nil {
		sess.FileDone(result)
	}
	return result
}

func (s *Service) uploadFile(ctx context.Context, req Request, file reconcile.UploadedFile, sess *session.Session, pushes *requestPushes) FileResult {
	result := FileResult{FileName: file.OriginalName}
	progress := func(stage string, percent float64) {
		if sess != nil {
			sess.Progress(file.OriginalName, stage, percent)
		}
	}

	progress("reconcile", 0)
	rec, err := s.reconciler.Reconcile(ctx, file, req.AdAccountID)
	if err != nil {
		s.reconciler.Discard(ctx, file.TempPath)
		return s.failResult(ctx, result, err)
	}

	result.Type = rec.Creative.MimeClass
	result.CreativeID = rec.Creative.ID.String()
	result.IsNew = rec.IsNew
	result.IsDuplicate = rec.IsDuplicate
	progress("reconcile", stageReconcileEnd)

	if rec.IsDuplicate {
		result.Status = StatusSkipped
		result.RemoteIDs = rec.FacebookIDs
		progress("done", 100)
		return result
	}

	// Identical files in one request share a single remote upload.
	ids, first, err := pushes.do(rec.Creative.ID, func() (entity.RemoteIDs, error) {
		ids, err := s.push(ctx, req, rec, func(p float64) {
			progress("upload", stageReconcileEnd+p*(stageUploadEnd-stageReconcileEnd)/100)
		})
		if err != nil {
			return ids, err
		}
		return ids, s.ledger.RecordUpload(ctx, rec.Creative.ID, req.AdAccountID, ids)
	})
	if err != nil {
		return s.failResult(ctx, result, err)
	}

	if !first {
		s.logger.InfoWithContextf(ctx, "[Upload] %s repeats creative %s in this request, skipping", file.OriginalName, rec.Creative.ID)
		result.Status = StatusSkipped
		result.IsNew = false
		result.IsDuplicate = true
		result.RemoteIDs = &ids
		progress("done", 100)
		return result
	}

	result.Status = StatusSuccess
	result.RemoteIDs = &ids
	progress("done", 100)
	return result
}

// push uploads the library copy of the creative, never the temp file.
func (s *Service) push(ctx context.Context, req Request, rec *reconcile.Result, progress provider.ProgressFunc) (entity.RemoteIDs, error) {
	var ids entity.RemoteIDs
	var err error
	kind := string(rec.Creative.MimeClass)

	if rec.Creative.IsVideo() {
		ids.VideoID, err = s.gateway.UploadVideo(ctx, rec.LibraryPath, req.AdAccountID, req.AccessToken, progress)
	} else {
		ids.ImageHash, err = s.gateway.UploadImage(ctx, rec.LibraryPath, req.AdAccountID, req.AccessToken)
		if err == nil {
			progress(100)
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.remoteCalls != nil {
		s.remoteCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", kind),
			attribute.String("outcome", outcome),
		))
	}
	return ids, err
}

func (s *Service) failResult(ctx context.Context, result FileResult, err error) FileResult {
	s.logger.ErrorWithContextf(ctx, err, "[Upload] File %s failed", result.FileName)
	result.Status = StatusFailed
	result.Error = apperr.UserMessage(err)
	return result
}

func (s *Service) fail(ctx context.Context, sess *session.Session, result FileResult, err error) FileResult {
	result = s.failResult(ctx, result, err)
	if sess != nil {
		sess.FileFailed(result.FileName, result.Error, result)
	}
	return result
}

// requestPushes runs at most one remote upload per creative within a request.
type requestPushes struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*pushCall
}

type pushCall struct {
	once sync.Once
	ids  entity.RemoteIDs
	err  error
}

// do runs fn for the first caller of creativeID. Later callers wait for it and get its outcome
// with first set to false.
func (p *requestPushes) do(creativeID uuid.UUID, fn func() (entity.RemoteIDs, error)) (entity.RemoteIDs, bool, error) {
	p.mu.Lock()
	c, ok := p.calls[creativeID]
	if !ok {
		c = &pushCall{}
		p.calls[creativeID] = c
	}
	p.mu.Unlock()

	first := false
	c.once.Do(func() {
		first = true
		c.ids, c.err = fn()
	})
	return c.ids, first, c.err
}
