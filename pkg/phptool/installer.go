package phptool

import (
	"context"
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/wpstarter/wpstarter/pkg/errs"
)

// PharMode is the permission set on downloaded phars.
const PharMode os.FileMode = 0o550

var (
	// ErrDownloadDisabled is returned for tools without a download URL, or
	// when downloading is turned off by configuration.
	ErrDownloadDisabled = errors.New("phar download disabled")

	// ErrChecksumMismatch is returned when a downloaded phar does not match
	// its published checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrChecksumUnavailable is returned when a tool publishes checksums but
	// none of them could be found for the downloaded phar.
	ErrChecksumUnavailable = errors.New("checksum unavailable")

	// ErrDownloadFailed is returned when the phar can't be fetched.
	ErrDownloadFailed = errors.New("phar download failed")
)

// Recorder receives provisioning measurements.
type Recorder interface {
	RecordToolDownload(tool, status string, duration time.Duration)
	RecordToolResolution(tool, source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordToolDownload(string, string, time.Duration) {}
func (nopRecorder) RecordToolResolution(string, string)              {}

// PharInstaller downloads phars and verifies them.
type PharInstaller struct {
	client   *retryablehttp.Client
	logger   zerolog.Logger
	recorder Recorder
}

// InstallerOption configures a PharInstaller.
type InstallerOption func(*PharInstaller)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) InstallerOption {
	return func(i *PharInstaller) { i.client.HTTPClient = c }
}

// WithRetries sets the retry count and the wait bounds between attempts.
func WithRetries(max int, waitMin, waitMax time.Duration) InstallerOption {
	return func(i *PharInstaller) {
		i.client.RetryMax = max
		i.client.RetryWaitMin = waitMin
		i.client.RetryWaitMax = waitMax
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) InstallerOption {
	return func(i *PharInstaller) {
		if r != nil {
			i.recorder = r
		}
	}
}

// NewPharInstaller creates an installer.
func NewPharInstaller(logger zerolog.Logger, opts ...InstallerOption) *PharInstaller {
	i := &PharInstaller{
		client: &retryablehttp.Client{
			HTTPClient:   &http.Client{Timeout: 5 * time.Minute},
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
			RetryMax:     3,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
			Logger:       leveledLogger{logger},
		},
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Client returns the retrying HTTP client, shared with other downloads.
func (i *PharInstaller) Client() *retryablehttp.Client {
	return i.client
}

// Install downloads the phar of tool to target and returns target. The file
// is written next to target first and only moved in place once its checksum
// matched.
func (i *PharInstaller) Install(ctx context.Context, tool PhpTool, target string) (string, error) {
	url := tool.PharURL()
	if url == "" {
		return "", errs.NewFatal(fmt.Sprintf("%s can't be downloaded", tool.NiceName()), ErrDownloadDisabled).
			WithCode(errs.CodeDownloadDisabled).
			WithSubject(tool.PackageName())
	}

	start := time.Now()
	path, err := i.install(ctx, tool, url, target)
	status := "success"
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		status = "checksum_mismatch"
	case errors.Is(err, ErrChecksumUnavailable):
		status = "checksum_unavailable"
	case err != nil:
		status = "failure"
	}
	i.recorder.RecordToolDownload(tool.PharName(), status, time.Since(start))
	return path, err
}

func (i *PharInstaller) install(ctx context.Context, tool PhpTool, url, target string) (string, error) {
	log := i.logger.With().Str("tool", tool.PharName()).Str("url", url).Logger()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+tool.PharName()+"-*.phar.part")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	log.Info().Msg("Downloading phar")
	if err := i.fetch(ctx, url, tmp); err != nil {
		tmp.Close()
		return "", errs.NewFatal(fmt.Sprintf("failed to download %s", tool.NiceName()), fmt.Errorf("%w: %v", ErrDownloadFailed, err)).
			WithCode(errs.CodeDownloadFailed).
			WithSubject(url)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write download file: %w", err)
	}

	algorithms := tool.ChecksumAlgorithms()
	verified := false
	for _, algo := range algorithms {
		expected, found, err := i.checksum(ctx, url+"."+algo)
		if err != nil {
			return "", errs.NewFatal(fmt.Sprintf("failed to download %s checksum", tool.NiceName()), fmt.Errorf("%w: %v", ErrDownloadFailed, err)).
				WithCode(errs.CodeDownloadFailed).
				WithSubject(url + "." + algo)
		}
		if !found {
			log.Debug().Str("algorithm", algo).Msg("No checksum published")
			continue
		}
		actual, err := fileHash(tmpName, algo)
		if err != nil {
			return "", err
		}
		if !strings.EqualFold(actual, expected) {
			log.Error().Str("algorithm", algo).Str("expected", expected).Str("actual", actual).Msg("Phar checksum mismatch")
			return "", errs.NewFatal(fmt.Sprintf("%s phar is corrupted", tool.NiceName()), ErrChecksumMismatch).
				WithCode(errs.CodeChecksum).
				WithSubject(url)
		}
		log.Debug().Str("algorithm", algo).Msg("Phar checksum verified")
		verified = true
		break
	}
	switch {
	case !verified && len(algorithms) > 0:
		log.Error().Strs("algorithms", algorithms).Msg("No published checksum found for phar")
		return "", errs.NewFatal(fmt.Sprintf("%s phar can't be verified", tool.NiceName()), ErrChecksumUnavailable).
			WithCode(errs.CodeChecksum).
			WithSubject(url)
	case !verified:
		log.Debug().Msg("Tool publishes no checksum, phar not verified")
	}

	if err := os.Chmod(tmpName, PharMode); err != nil {
		return "", fmt.Errorf("failed to chmod phar: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("failed to move phar in place: %w", err)
	}
	log.Info().Str("target", target).Msg("Phar installed")
	return target, nil
}

func (i *PharInstaller) fetch(ctx context.Context, url string, w io.Writer) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// checksum fetches a checksum file. A 404 means none is published.
func (i *PharInstaller) checksum(ctx context.Context, url string) (string, bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", false, err
	}
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", false, nil
	}
	return fields[0], true, nil
}

func fileHash(path, algo string) (string, error) {
	var h hash.Hash
	switch algo {
	case AlgoSHA512:
		h = sha512.New()
	case AlgoMD5:
		h = md5.New()
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l zerolog.Logger
}

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Error().Fields(kv).Msg(msg) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Debug().Fields(kv).Msg(msg) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Trace().Fields(kv).Msg(msg) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Warn().Fields(kv).Msg(msg) }
