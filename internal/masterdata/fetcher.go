package masterdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cloneofkoha/form-filler/internal/common"
)

// Fetcher pulls the profile source text from a shared-document export URL,
// falling back to a local file when the URL is unset or unreachable. The
// engine only reads the source, never writes it.
type Fetcher struct {
	URL     string
	Path    string
	Timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

func NewFetcher(url, path string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		URL:     url,
		Path:    path,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch returns the raw profile text and the source it came from
// ("url" or "file").
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, string, error) {
	if f.URL != "" {
		raw, err := f.fetchURL(ctx)
		if err == nil {
			return raw, "url", nil
		}
		f.logger.Warn("masterdata.fetch.url_failed", "url", f.URL, "error", err)
	}
	if f.Path != "" {
		raw, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, "", common.NewAppError("DATA_LOAD", "reading local master data file", common.ErrDataLoad)
		}
		return raw, "file", nil
	}
	return nil, "", common.NewAppError("DATA_LOAD", "no master data source configured", common.ErrDataLoad)
}

func (f *Fetcher) fetchURL(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Warn("masterdata.fetch.body_close_error", "error", cerr)
		}
	}()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
