package infra

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const iconSize = 24 // pixels, matches the display layer's row height

// IconDownloader fetches and caches asset icons for the display layer.
type IconDownloader struct {
	basePath string
	client   *http.Client
}

// NewIconDownloader creates a downloader writing under baseDir/icons.
func NewIconDownloader(baseDir string) (*IconDownloader, error) {
	path := filepath.Join(baseDir, "icons")
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icons directory: %w", err)
	}

	// Bound idle connections so repeated syncs do not leak sockets
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath: path,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon downloads the icon for an asset if it doesn't exist yet and
// returns the local file path. Images are resized to iconSize for
// consistent display.
func (d *IconDownloader) DownloadIcon(ctx context.Context, asset string) (string, error) {
	// Sanitize to prevent path traversal
	safeAsset := sanitizeAsset(asset)
	if safeAsset == "" {
		return "", fmt.Errorf("invalid asset: %s", asset)
	}

	filePath := filepath.Join(d.basePath, strings.ToLower(safeAsset)+".png")
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Cache hit
	}

	url := fmt.Sprintf("https://assets.coincap.io/assets/icons/%s@2x.png", strings.ToLower(safeAsset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	resizedImg := imaging.Resize(srcImg, iconSize, iconSize, imaging.Lanczos)
	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// IconPath returns the local path for an asset's icon.
func (d *IconDownloader) IconPath(asset string) string {
	return filepath.Join(d.basePath, strings.ToLower(sanitizeAsset(asset))+".png")
}

func sanitizeAsset(asset string) string {
	res := make([]rune, 0, len(asset))
	for _, r := range asset {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
