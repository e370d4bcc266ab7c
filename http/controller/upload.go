package controller

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-ads-orchestrator/reconcile"
	"github.com/tnqbao/gau-ads-orchestrator/session"
	"github.com/tnqbao/gau-ads-orchestrator/upload"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

const maxFilesPerUpload = 50

// UploadCreatives accepts a multi-file upload for one ad account. With ?wait=true the
// per-file results are returned directly, otherwise a session id to follow over SSE.
func (ctrl *Controller) UploadCreatives(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}

	adAccountID := c.PostForm("ad_account_id")
	if adAccountID == "" {
		utils.JSON400(c, "ad_account_id is required")
		return
	}
	batchGroupID, err := parseOptionalUUID(c.PostForm("batch_group_id"))
	if err != nil {
		utils.JSON400(c, "Invalid batch_group_id format")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] Invalid multipart form: %v", err)
		utils.JSON400(c, "A multipart form with files is required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		utils.JSON400(c, "At least one file is required")
		return
	}
	if len(headers) > maxFilesPerUpload {
		utils.JSON413(c, fmt.Sprintf("At most %d files per upload", maxFilesPerUpload))
		return
	}

	files := make([]reconcile.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := ctrl.saveUpload(fh, batchGroupID)
		if err != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Upload] Failed to store %s", fh.Filename)
			for _, saved := range files {
				ctrl.Service.Reconcile.Discard(ctx, saved.TempPath)
			}
			respondError(c, err)
			return
		}
		files = append(files, f)
	}

	req := upload.Request{
		AdAccountID: adAccountID,
		AccessToken: token,
		UserID:      userID.String(),
		Files:       files,
	}

	if c.Query("wait") == "true" {
		utils.JSON200(c, ctrl.Service.Upload.Process(ctx, req, nil))
		return
	}

	sess := ctrl.Service.Upload.Start(ctx, req)
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Upload] Session %s started with %d files for %s", sess.ID(), len(files), adAccountID)
	utils.JSON202(c, dto.UploadAcceptedResponseDTO{
		SessionID:  sess.ID(),
		TotalFiles: len(files),
		EventsURL:  "/api/v1/ads/uploads/" + sess.ID() + "/events",
	})
}

func (ctrl *Controller) ImportFromDrive(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}

	var req dto.DriveImportRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}
	batchGroupID, err := parseOptionalUUID(req.BatchGroupID)
	if err != nil {
		utils.JSON400(c, "Invalid batch_group_id format")
		return
	}

	sess := ctrl.Service.Upload.StartDriveImport(ctx, upload.DriveImportRequest{
		AdAccountID:  req.AdAccountID,
		AccessToken:  token,
		OAuthToken:   req.OAuthToken,
		UserID:       userID.String(),
		FileIDs:      req.FileIDs,
		BatchGroupID: batchGroupID,
	})
	utils.JSON202(c, dto.UploadAcceptedResponseDTO{
		SessionID:  sess.ID(),
		TotalFiles: len(req.FileIDs),
		EventsURL:  "/api/v1/ads/uploads/" + sess.ID() + "/events",
	})
}

func (ctrl *Controller) GetUploadSession(c *gin.Context) {
	state, err := ctrl.Service.Sessions.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, state)
}

type sseEvent struct {
	name string
	data any
}

// sseSink buffers events for one SSE connection. Progress is dropped when the client lags,
// file and terminal events only once the connection is gone.
type sseSink struct {
	ch   chan sseEvent
	done chan struct{}
}

func newSSESink(size int) *sseSink {
	return &sseSink{ch: make(chan sseEvent, size), done: make(chan struct{})}
}

func (s *sseSink) Emit(event string, data any) {
	ev := sseEvent{name: event, data: data}
	if event == session.EventProgress {
		select {
		case s.ch <- ev:
		default:
		}
		return
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

// StreamUploadSession streams session events until the session completes or the client leaves.
func (ctrl *Controller) StreamUploadSession(c *gin.Context) {
	ctx := c.Request.Context()
	sink := newSSESink(256)
	defer close(sink.done)
	unsubscribe, err := ctrl.Service.Sessions.Subscribe(c.Param("id"), sink)
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case ev := <-sink.ch:
			c.SSEvent(ev.name, ev.data)
			return !isFinalEvent(ev)
		}
	})
}

// isFinalEvent also ends the stream when a subscriber joins a session that already finished.
func isFinalEvent(ev sseEvent) bool {
	switch ev.name {
	case session.EventComplete, session.EventError:
		return true
	case session.EventSnapshot:
		state, ok := ev.data.(entity.UploadSession)
		return ok && state.Status != entity.UploadStatusProcessing
	}
	return false
}
