package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
	"github.com/dmitrijs2005/r2relay/internal/server/tokens"
	"github.com/dmitrijs2005/r2relay/internal/server/transfer"
)

const (
	// multipartOverhead is the body allowance on top of the file limit for
	// form fields and part headers.
	multipartOverhead = 1 << 20
	// maxFieldSize bounds a single non-file form field.
	maxFieldSize = 64 << 10

	uploadMessage = "file uploaded"
)

type TokenService interface {
	TokenValidator
	Create(ctx context.Context, username, email string, expiresInDays int) (*models.IssuedToken, error)
	Renew(ctx context.Context, token string, extendDays int) (*models.RenewResult, error)
}

type TransferService interface {
	FetchAndRelay(ctx context.Context, sourceURL string, dest models.Destination) (*models.TransferResult, error)
	Stage(ctx context.Context, up models.Upload) (*transfer.Staged, error)
	RelayStaged(ctx context.Context, st *transfer.Staged, dest models.Destination) (*models.TransferResult, error)
	Limit() int64
}

type handler struct {
	tokens   TokenService
	transfer TransferService
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Service: common.ServiceName})
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	issued, err := h.tokens.Create(c.Request.Context(), req.Username, req.Email, daysOrDefault(req.ExpiresInDays))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, registerResponse{
		Status:      tokens.StatusSuccess,
		ID:          issued.ID,
		Token:       issued.Token,
		CreatedAt:   *formatTime(&issued.CreatedAt),
		ExpiresAt:   formatTime(issued.ExpiresAt),
		IsPermanent: issued.IsPermanent,
	})
}

func (h *handler) renew(c *gin.Context) {
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	res, err := h.tokens.Renew(c.Request.Context(), req.Token, daysOrDefault(req.ExtendDays))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, renewResponse{
		Status:       res.Status,
		Message:      res.Message,
		Token:        res.Token,
		OldStatus:    res.OldStatus,
		IsPermanent:  res.IsPermanent,
		NewExpiresAt: formatTime(res.NewExpiresAt),
		ExtendedDays: res.ExtendedDays,
	})
}

func (h *handler) upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	dest := models.Destination{
		Endpoint:        req.Endpoint,
		Bucket:          req.BucketName,
		ObjectKey:       req.ObjectKey,
		AccessKeyID:     req.AccessKeyID,
		SecretAccessKey: req.SecretAccessKey,
		CustomDomain:    req.CustomDomain,
	}

	res, err := h.transfer.FetchAndRelay(c.Request.Context(), req.FileURL, dest)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: tokens.StatusSuccess, Message: uploadMessage, Data: res})
}

// uploadDirect reads the multipart body part by part. The file part is
// spilled as it arrives, so fields may come before or after it.
func (h *handler) uploadDirect(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.transfer.Limit()+multipartOverhead)

	mr, err := c.Request.MultipartReader()
	if err != nil {
		fail(c, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}

	fields := make(map[string]string)
	var staged *transfer.Staged
	defer func() {
		if staged != nil {
			staged.Close()
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(c, multipartError(err))
			return
		}

		name := part.FormName()
		switch {
		case name == "file":
			if staged != nil {
				part.Close()
				fail(c, fmt.Errorf("%w: more than one file part", common.ErrorValidation))
				return
			}
			staged, err = h.transfer.Stage(ctx, models.Upload{
				Body:        part,
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
			})
			part.Close()
			if err != nil {
				fail(c, err)
				return
			}
		case name != "":
			v, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			part.Close()
			if err != nil {
				fail(c, multipartError(err))
				return
			}
			fields[name] = strings.TrimSpace(string(v))
		default:
			part.Close()
		}
	}

	if staged == nil {
		fail(c, fmt.Errorf("%w: file is required", common.ErrorValidation))
		return
	}
	for _, k := range []string{"bucket_name", "endpoint", "access_key_id", "secret_access_key"} {
		if fields[k] == "" {
			fail(c, fmt.Errorf("%w: %s is required", common.ErrorValidation, k))
			return
		}
	}

	dest := models.Destination{
		Endpoint:        fields["endpoint"],
		Bucket:          fields["bucket_name"],
		ObjectKey:       fields["object_key"],
		AccessKeyID:     fields["access_key_id"],
		SecretAccessKey: fields["secret_access_key"],
		CustomDomain:    fields["custom_domain"],
	}

	res, err := h.transfer.RelayStaged(ctx, staged, dest)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: tokens.StatusSuccess, Message: uploadMessage, Data: res})
}

func multipartError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return fmt.Errorf("%w: request body over %d bytes", common.ErrSizeLimitExceeded, maxBytes.Limit)
	}
	return fmt.Errorf("%w: %v", common.ErrorValidation, err)
}
