package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"toxref_brick/config"
)

var (
	ErrNoMatch         = errors.New("download: no file matches pattern")
	ErrMultipleMatches = errors.New("download: more than one file matches pattern")
)

// File is one entry of a dataset file listing.
type File struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
}

type Client struct {
	cfg     config.DownloadConfig
	pattern *regexp.Regexp
	http    *http.Client
	logger  *zap.SugaredLogger

	// Progress receives the progress bar when cfg.Progress is set.
	Progress io.Writer
}

// NewClient compiles the file pattern. Matching is anchored at the start of the
// filename only.
func NewClient(cfg config.DownloadConfig, logger *zap.SugaredLogger) (*Client, error) {
	re, err := regexp.Compile("^(?:" + cfg.Pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", cfg.Pattern, err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8192
	}
	return &Client{
		cfg:      cfg,
		pattern:  re,
		http:     http.DefaultClient,
		logger:   logger,
		Progress: os.Stderr,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	return req, nil
}

// List returns the files of the dataset.
func (c *Client) List(ctx context.Context) ([]File, error) {
	req, err := c.newRequest(ctx, c.cfg.ListingURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list files failed: %s", resp.Status)
	}

	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("failed to decode file listing: %w", err)
	}
	return files, nil
}

// Select returns the single file whose name matches the pattern.
func (c *Client) Select(files []File) (File, error) {
	var matches []File
	for _, f := range files {
		if c.pattern.MatchString(f.Filename) {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return File{}, fmt.Errorf("%w %q", ErrNoMatch, c.cfg.Pattern)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Filename
		}
		return File{}, fmt.Errorf("%w %q: %s", ErrMultipleMatches, c.cfg.Pattern, strings.Join(names, ", "))
	}
}

// Fetch downloads the matching dataset file to dest and returns its path.
// An existing file at dest is replaced only after the transfer completes.
func (c *Client) Fetch(ctx context.Context, dest string) (string, error) {
	files, err := c.List(ctx)
	if err != nil {
		return "", err
	}
	file, err := c.Select(files)
	if err != nil {
		return "", err
	}
	c.logger.Infof("found %s (id %s)", file.Filename, file.ID)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.FilesURL, "/") + "/" + file.ID
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file.Filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s failed: %s", file.Filename, resp.Status)
	}

	part := dest + ".part"
	n, err := c.stream(resp, part, file.Filename)
	if err != nil {
		os.Remove(part)
		return "", err
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("move download into place: %w", err)
	}
	c.logger.Infof("downloaded %s (%d bytes)", dest, n)
	return dest, nil
}

func (c *Client) stream(resp *http.Response, path, name string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	// MultiWriter hides os.File's ReadFrom so the chunk size is honored.
	w := io.MultiWriter(out)
	if c.cfg.Progress && c.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(c.Progress),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	n, err := io.CopyBuffer(w, resp.Body, make([]byte, c.cfg.ChunkSize))
	if err != nil {
		out.Close()
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	return n, nil
}
