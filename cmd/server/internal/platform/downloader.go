package platform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// MediaDownloader fetches stream audio through an external tool.
type MediaDownloader interface {
	// DownloadTail fetches the last windowSeconds of audio behind the
	// stream URL. A zero windowSeconds fetches whatever is available.
	DownloadTail(ctx context.Context, sourceURL string, windowSeconds int) ([]byte, error)
}

// YtDlpDownloader shells out to yt-dlp for platforms without an
// addressable recording API.
type YtDlpDownloader struct {
	Binary string // defaults to "yt-dlp" on PATH
}

// NewYtDlpDownloader creates a downloader using the given binary path.
func NewYtDlpDownloader(binary string) *YtDlpDownloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlpDownloader{Binary: binary}
}

// DownloadTail extracts audio for the trailing window using yt-dlp
// section slicing with a negative start timestamp.
func (d *YtDlpDownloader) DownloadTail(ctx context.Context, sourceURL string, windowSeconds int) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "catchup-media-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outputBase := filepath.Join(tempDir, "segment")
	args := []string{
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"-o", outputBase + ".%(ext)s",
		"--no-playlist",
		"--no-warnings",
	}
	if windowSeconds > 0 {
		args = append(args, "--download-sections", fmt.Sprintf("*-%d-inf", windowSeconds))
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Dir = tempDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return nil, fmt.Errorf("%s failed: %w\nstderr: %s", d.Binary, err, stderrStr)
		}
		return nil, fmt.Errorf("%s failed: %w", d.Binary, err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "segment") {
			data, err := os.ReadFile(filepath.Join(tempDir, entry.Name()))
			if err != nil {
				return nil, err
			}
			if len(data) == 0 {
				return nil, fmt.Errorf("downloaded audio file is empty")
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("no audio file produced for %s", sourceURL)
}
