package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/reconcile"
	"github.com/tnqbao/gau-ads-orchestrator/session"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

// respondError maps the error taxonomy to a status code. Only UserMessage text leaves the process.
func respondError(c *gin.Context, err error) {
	msg := apperr.UserMessage(err)

	var openErr *apperr.CircuitOpenError
	var rateErr *apperr.RateLimitedError
	var remoteErr *apperr.RemoteUploadError
	var fetchErr *apperr.DuplicationStructureFetchError
	var ioErr *apperr.IOError

	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		utils.JSON404(c, "Not found")
	case errors.As(err, &openErr), errors.As(err, &rateErr):
		utils.JSON503(c, msg)
	case errors.As(err, &fetchErr), errors.As(err, &remoteErr):
		utils.JSON502(c, msg)
	case errors.As(err, &ioErr):
		utils.JSON500(c, msg)
	default:
		utils.JSON500(c, apperr.GenericUserMessage)
	}
}

func (ctrl *Controller) currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[Auth] %v", err)
		utils.JSON401(c, "Unauthorized: user_id not found")
		return uuid.Nil, false
	}
	return userID, true
}

// facebookToken aborts with 401 when neither the user nor the service has a Meta token.
func (ctrl *Controller) facebookToken(c *gin.Context) (string, bool) {
	token := utils.GetFacebookToken(c, ctrl.Config.EnvConfig)
	if token == "" {
		utils.JSON401(c, "A Facebook access token is required")
		return "", false
	}
	return token, true
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// saveUpload writes a multipart file into the temp dir.
func (ctrl *Controller) saveUpload(fh *multipart.FileHeader, batchGroupID *uuid.UUID) (reconcile.UploadedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return reconcile.UploadedFile{}, apperr.NewIOError("open", fh.Filename, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(ctrl.Config.EnvConfig.Library.TempDir, "upload-*")
	if err != nil {
		return reconcile.UploadedFile{}, apperr.NewIOError("create", ctrl.Config.EnvConfig.Library.TempDir, err)
	}
	written, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if err == nil {
			err = closeErr
		}
		return reconcile.UploadedFile{}, apperr.NewIOError("write", tmp.Name(), err)
	}

	return reconcile.UploadedFile{
		TempPath:     tmp.Name(),
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		ByteSize:     written,
		BatchGroupID: batchGroupID,
	}, nil
}
