// Package kaggle provides a minimal Kaggle API v1 client covering the three
// operations the sync pipeline needs: downloading a dataset archive,
// downloading its metadata, and publishing a new dataset version.
//
// Authentication uses basic auth with the account username and API key, the
// same credentials the official tooling reads from KAGGLE_USERNAME/KAGGLE_KEY.
package kaggle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/mczielinski/kaggle-bitcoin/internal/config"
)

const (
	// Kaggle public API base URL
	defaultBaseURL = "https://www.kaggle.com/api/v1"

	// Metadata file name used by the official tooling.
	metadataFileName = "dataset-metadata.json"

	// Transfer configuration. The archive runs to hundreds of megabytes,
	// so the client timeout is sized for full downloads, not single calls.
	transferTimeout = 15 * time.Minute

	// Retry configuration
	initialRetryDelay  = 500 * time.Millisecond
	maxRetryDelay      = 30 * time.Second
	defaultRetryBudget = 2 * time.Minute
)

// Client talks to the Kaggle API v1.
type Client struct {
	http        *resty.Client
	logger      *slog.Logger
	retryBudget time.Duration
}

// NewClient creates a Kaggle client from configuration. An empty base URL
// falls back to the public API endpoint.
func NewClient(cfg config.KaggleConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(cfg.Username, cfg.Key).
		SetTimeout(transferTimeout).
		SetHeader("User-Agent", "kaggle-bitcoin/1.0")

	return &Client{
		http:        httpClient,
		logger:      logger,
		retryBudget: defaultRetryBudget,
	}
}

// DownloadDataset downloads the dataset archive for slug ("owner/name") and
// extracts it into dir. It returns the extracted file names, relative to dir.
func (c *Client) DownloadDataset(ctx context.Context, slug, dir string) ([]string, error) {
	archive, err := os.CreateTemp(dir, "dataset-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create download file: %w", err)
	}
	archivePath := archive.Name()
	archive.Close()
	defer os.Remove(archivePath)

	c.logger.Debug("downloading dataset archive", "slug", slug)

	err = c.withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetOutput(archivePath).
			Get("/datasets/download/" + slug)
		if err != nil {
			return fmt.Errorf("download request failed: %w", err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset %s: %w", slug, err)
	}

	files, err := extractZip(archivePath, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract dataset archive: %w", err)
	}

	c.logger.Debug("extracted dataset archive", "slug", slug, "files", len(files))
	return files, nil
}

// DownloadMetadata fetches the dataset metadata for slug and writes it to
// dataset-metadata.json in dir, returning the written path.
func (c *Client) DownloadMetadata(ctx context.Context, slug, dir string) (string, error) {
	var body []byte

	err := c.withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			Get("/datasets/metadata/" + slug)
		if err != nil {
			return fmt.Errorf("metadata request failed: %w", err)
		}
		if err := classifyStatus(resp); err != nil {
			return err
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to download metadata for %s: %w", slug, err)
	}

	path := filepath.Join(dir, metadataFileName)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}

	return path, nil
}

// PublishVersion uploads the named dataset files from dir and creates a new
// version of slug with the given notes. Only the listed files are uploaded;
// anything else sharing dir never reaches the dataset.
func (c *Client) PublishVersion(ctx context.Context, slug, dir string, files []string, notes string) error {
	if len(files) == 0 {
		return fmt.Errorf("no dataset files to upload for %s", slug)
	}

	type fileToken struct {
		Token string `json:"token"`
	}
	tokens := make([]fileToken, 0, len(files))

	for _, name := range files {
		token, err := c.uploadFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
		tokens = append(tokens, fileToken{Token: token})
	}

	var result struct {
		Ref    string `json:"ref"`
		URL    string `json:"url"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}

	err := c.withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]any{
				"versionNotes": notes,
				"files":        tokens,
			}).
			SetResult(&result).
			ForceContentType("application/json").
			Post("/datasets/create/version/" + slug)
		if err != nil {
			return fmt.Errorf("create version request failed: %w", err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return fmt.Errorf("failed to create dataset version for %s: %w", slug, err)
	}

	if result.Error != "" {
		return fmt.Errorf("dataset version rejected: %s", result.Error)
	}

	c.logger.Info("published dataset version",
		"slug", slug,
		"files", len(tokens),
		"status", result.Status)
	return nil
}

// uploadFile runs the two-phase file upload: request an upload ticket, then
// put the file bytes to the returned URL. It returns the ticket token used to
// reference the blob when creating the version.
func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var ticket struct {
		Token     string `json:"token"`
		CreateURL string `json:"createUrl"`
	}

	err = c.withRetry(ctx, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("fileName", filepath.Base(path)).
			SetResult(&ticket).
			ForceContentType("application/json").
			Post(fmt.Sprintf("/datasets/upload/file/%d/%d", info.Size(), info.ModTime().Unix()))
		if err != nil {
			return fmt.Errorf("upload ticket request failed: %w", err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return "", err
	}
	if ticket.Token == "" || ticket.CreateURL == "" {
		return "", fmt.Errorf("upload ticket response missing token or url")
	}

	err = c.withRetry(ctx, func() error {
		// CreateURL is absolute, so the client base URL is bypassed.
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(data).
			Put(ticket.CreateURL)
		if err != nil {
			return fmt.Errorf("blob upload failed: %w", err)
		}
		return classifyStatus(resp)
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("uploaded dataset file",
		"file", filepath.Base(path),
		"bytes", info.Size())
	return ticket.Token, nil
}

func (c *Client) withRetry(ctx context.Context, op func() error) error {
	backoffConfig := backoff.NewExponentialBackOff()
	backoffConfig.InitialInterval = initialRetryDelay
	backoffConfig.MaxInterval = maxRetryDelay
	backoffConfig.MaxElapsedTime = c.retryBudget

	return backoff.Retry(op, backoff.WithContext(backoffConfig, ctx))
}

// classifyStatus converts a non-2xx response into an error. Client errors
// other than 429 are permanent; server errors and rate limits are retryable.
func classifyStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	code := resp.StatusCode()
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}

// extractZip unpacks archive into dir and returns the extracted file names
// relative to dir. Entries escaping dir are rejected.
func extractZip(archivePath, dir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	cleanDir := filepath.Clean(dir)
	var files []string

	for _, entry := range reader.File {
		target := filepath.Join(cleanDir, entry.Name)
		if !strings.HasPrefix(target, cleanDir+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry %q escapes destination", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("failed to create dir %s: %w", entry.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("failed to create parent dir for %s: %w", entry.Name, err)
		}

		if err := copyZipEntry(entry, target); err != nil {
			return nil, err
		}
		files = append(files, entry.Name)
	}

	return files, nil
}

func copyZipEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
	}
	return nil
}
