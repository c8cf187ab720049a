// Package transfer relays payloads from a source URL or an inbound upload
// into an S3-compatible object store, enforcing a hard size limit. Payloads
// pass through a temporary spill file that is removed on every exit path.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
)

type Service struct {
	store        ObjectStore
	httpClient   *http.Client
	limit        int64
	tempDir      string
	fetchTimeout time.Duration
	logger       logging.Logger
}

// NewService builds the pipeline. A nil httpClient means http.DefaultClient,
// which follows redirects.
func NewService(cfg *config.Config, store ObjectStore, httpClient *http.Client, l logging.Logger) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Service{
		store:        store,
		httpClient:   httpClient,
		limit:        cfg.MaxFileSize,
		tempDir:      cfg.TempDir,
		fetchTimeout: cfg.FetchTimeout,
		logger:       l.With("module", "transfer"),
	}
}

// Limit is the largest accepted payload in bytes.
func (s *Service) Limit() int64 { return s.limit }

// ValidateObjectKey rejects empty keys and keys with a leading slash.
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", common.ErrInvalidObjectKey)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q must not start with '/'", common.ErrInvalidObjectKey, key)
	}
	return nil
}

// PublicURL is where the object can be fetched after a successful relay.
func PublicURL(dest models.Destination) string {
	if dest.CustomDomain != "" {
		return strings.TrimRight(dest.CustomDomain, "/") + "/" + dest.ObjectKey
	}
	return strings.TrimRight(dest.Endpoint, "/") + "/" + dest.Bucket + "/" + dest.ObjectKey
}

// probe is what a HEAD request says about the source.
type probe struct {
	contentType string
	// length is -1 when unknown.
	length int64
	ok     bool
}

func (s *Service) head(ctx context.Context, sourceURL string) (probe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return probe{}, fmt.Errorf("%w: %v", common.ErrTransferTransport, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return probe{}, s.transportError(ctx, "head", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		// some origins only speak GET; fall back to its headers
		return probe{length: -1}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return probe{}, fmt.Errorf("%w: head %s", common.ErrTransferTransport, resp.Status)
	}
	return probe{contentType: resp.Header.Get("Content-Type"), length: resp.ContentLength, ok: true}, nil
}

func (s *Service) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", common.ErrTransferTransport, op, err)
}

func (s *Service) checkDeclared(length int64) error {
	if length > s.limit {
		return fmt.Errorf("%w: declared %d > %d", common.ErrSizeLimitExceeded, length, s.limit)
	}
	return nil
}

// FetchAndRelay downloads sourceURL and writes it to dest. The object key is
// checked before any network call; the declared length is checked before
// the body is read, and the running byte count while it is.
func (s *Service) FetchAndRelay(ctx context.Context, sourceURL string, dest models.Destination) (*models.TransferResult, error) {
	if err := ValidateObjectKey(dest.ObjectKey); err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	p, err := s.head(fetchCtx, sourceURL)
	if err != nil {
		return nil, err
	}
	if err := s.checkDeclared(p.length); err != nil {
		s.logger.Warn(ctx, "source too large", "url", sourceURL, "declared", p.length)
		return nil, err
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransferTransport, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.transportError(fetchCtx, "get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s", common.ErrTransferTransport, resp.Status)
	}
	if !p.ok {
		p.contentType = resp.Header.Get("Content-Type")
		if err := s.checkDeclared(resp.ContentLength); err != nil {
			return nil, err
		}
	}
	contentType := p.contentType
	if contentType == "" {
		contentType = common.DefaultContentType
	}

	spill, err := newSpillFile(s.tempDir)
	if err != nil {
		return nil, err
	}
	defer spill.release()

	if err := spill.fill(fetchCtx, resp.Body, s.limit); err != nil {
		return nil, s.fillError(fetchCtx, err)
	}

	result, err := s.put(ctx, spill, dest, contentType)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "relayed from url", "url", sourceURL, "bucket", dest.Bucket, "key", dest.ObjectKey, "size", result.Size)
	return result, nil
}

func (s *Service) fillError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrSizeLimitExceeded):
		return err
	case errors.Is(err, errSourceRead):
		return s.transportError(ctx, "read body", err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", common.ErrTransferTransport, err)
	default:
		return err
	}
}

func (s *Service) put(ctx context.Context, spill *spillFile, dest models.Destination, contentType string) (*models.TransferResult, error) {
	body, err := spill.reader()
	if err != nil {
		return nil, err
	}
	if err := s.store.PutObject(ctx, dest, body, spill.size, contentType); err != nil {
		return nil, err
	}
	return &models.TransferResult{
		PublicURL:   PublicURL(dest),
		Size:        spill.size,
		ContentType: contentType,
	}, nil
}

// Staged is an upload already held in a spill file and known to be within
// the size limit. Close must be called once it is no longer needed.
type Staged struct {
	spill       *spillFile
	FileName    string
	ContentType string
}

func (st *Staged) Size() int64 { return st.spill.size }

func (st *Staged) Close() error { return st.spill.release() }

// guessContentType prefers the declared type, then the filename extension.
func guessContentType(declared, fileName string) string {
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(path.Ext(fileName)); t != "" {
		return t
	}
	return common.DefaultContentType
}

// Stage spills up.Body, reading at most one byte past the limit.
func (s *Service) Stage(ctx context.Context, up models.Upload) (*Staged, error) {
	spill, err := newSpillFile(s.tempDir)
	if err != nil {
		return nil, err
	}
	if err := spill.fill(ctx, io.LimitReader(up.Body, s.limit+1), s.limit); err != nil {
		spill.release()
		if errors.Is(err, errSourceRead) {
			return nil, fmt.Errorf("%w: %w", common.ErrTransferTransport, err)
		}
		return nil, err
	}
	st := &Staged{
		spill:       spill,
		FileName:    up.FileName,
		ContentType: guessContentType(up.ContentType, up.FileName),
	}
	s.logger.Debug(ctx, "upload staged", "file", st.FileName, "type", st.ContentType, "size", st.Size())
	return st, nil
}

// RelayStaged writes a staged upload to dest. An empty object key defaults
// to the upload's filename.
func (s *Service) RelayStaged(ctx context.Context, st *Staged, dest models.Destination) (*models.TransferResult, error) {
	if strings.TrimSpace(dest.ObjectKey) == "" {
		dest.ObjectKey = st.FileName
	}
	if err := ValidateObjectKey(dest.ObjectKey); err != nil {
		return nil, err
	}

	result, err := s.put(ctx, st.spill, dest, st.ContentType)
	if err != nil {
		return nil, err
	}
	result.FileName = st.FileName
	s.logger.Info(ctx, "relayed upload", "file", st.FileName, "bucket", dest.Bucket, "key", dest.ObjectKey, "size", result.Size)
	return result, nil
}

// DirectRelay stages up and writes it to dest.
func (s *Service) DirectRelay(ctx context.Context, up models.Upload, dest models.Destination) (*models.TransferResult, error) {
	key := dest.ObjectKey
	if strings.TrimSpace(key) == "" {
		key = up.FileName
	}
	if err := ValidateObjectKey(key); err != nil {
		return nil, err
	}

	st, err := s.Stage(ctx, up)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	dest.ObjectKey = key
	return s.RelayStaged(ctx, st, dest)
}
