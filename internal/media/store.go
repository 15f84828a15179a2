package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"unichat-relay/internal/domain"
	"unichat-relay/pkg/logger"
)

// URLPrefix is the route prefix the HTTP layer serves the media root under.
// Stored attachment URLs are built against it.
const URLPrefix = "/media"

// Store persists attachment bytes under a platform/direction-scoped layout:
//
//	<root>/<platform>/<direction>/<timestamp><ext>
//
// Filenames are millisecond timestamps kept strictly monotonic per process,
// so two saves in the same millisecond never collide and existing files are
// never overwritten.
type Store struct {
	root       string
	httpClient *resty.Client

	mu        sync.Mutex
	lastStamp int64
}

// StagedFile describes an outbound upload already written to disk.
type StagedFile struct {
	Path     string
	LocalURL string
	Size     int64
}

// FetchRequest describes how to pull remote media. When ResolveURL is set
// the fetch is two-step: GET ResolveURL (authorized) to obtain the download
// URL, then download. Otherwise URL is downloaded directly.
type FetchRequest struct {
	ResolveURL string
	URL        string
	AuthToken  string
	Ext        string
}

func NewStore(root string, timeout time.Duration) (*Store, error) {
	for _, platform := range []domain.Platform{domain.PlatformWhatsApp, domain.PlatformMessenger} {
		for _, direction := range []domain.Direction{domain.DirectionSent, domain.DirectionReceived} {
			dir := filepath.Join(root, string(platform), string(direction))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create media dir %s: %w", dir, err)
			}
		}
	}

	client := resty.New().SetTimeout(timeout)

	return &Store{root: root, httpClient: client}, nil
}

// Root returns the filesystem root the HTTP static layer should serve.
func (s *Store) Root() string { return s.root }

// SentDir returns the staging directory for outbound files on a platform.
func (s *Store) SentDir(platform domain.Platform) string {
	return filepath.Join(s.root, string(platform), string(domain.DirectionSent))
}

// URLFor maps a filename in a platform/direction directory to its served URL.
func (s *Store) URLFor(platform domain.Platform, direction domain.Direction, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s", URLPrefix, platform, direction, filename)
}

func (s *Store) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

// Persist writes bytes into the platform/direction directory and returns the
// URL path the file is served at.
func (s *Store) Persist(platform domain.Platform, direction domain.Direction, data []byte, ext string) (string, error) {
	filename := fmt.Sprintf("%d%s", s.nextStamp(), normalizeExt(ext))
	path := filepath.Join(s.root, string(platform), string(direction), filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return s.URLFor(platform, direction, filename), nil
}

// Stage streams an outbound upload into the sent directory before any
// platform call is made. The orchestrator later records LocalURL on the
// message row; files whose send fails are left for the sweeper.
func (s *Store) Stage(platform domain.Platform, src io.Reader, ext string) (*StagedFile, error) {
	filename := fmt.Sprintf("%d%s", s.nextStamp(), normalizeExt(ext))
	path := filepath.Join(s.SentDir(platform), filename)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			logger.Warnf("Failed to remove partial staged file %s: %v", path, removeErr)
		}
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	return &StagedFile{
		Path:     path,
		LocalURL: s.URLFor(platform, domain.DirectionSent, filename),
		Size:     size,
	}, nil
}

// FetchAndPersist downloads remote media described by req and persists it as
// a received file. Either network step failing yields a MediaFetchError;
// callers on the ingestion path treat that as non-fatal.
func (s *Store) FetchAndPersist(ctx context.Context, platform domain.Platform, req FetchRequest) (string, error) {
	downloadURL := req.URL

	if req.ResolveURL != "" {
		var resolved struct {
			URL string `json:"url"`
		}

		resp, err := s.httpClient.R().
			SetContext(ctx).
			SetAuthToken(req.AuthToken).
			SetResult(&resolved).
			Get(req.ResolveURL)
		if err != nil {
			return "", &domain.MediaFetchError{Platform: platform, Ref: req.ResolveURL, Err: err}
		}
		if resp.StatusCode() != http.StatusOK || resolved.URL == "" {
			return "", &domain.MediaFetchError{
				Platform: platform,
				Ref:      req.ResolveURL,
				Err:      fmt.Errorf("resolve returned status %d", resp.StatusCode()),
			}
		}

		downloadURL = resolved.URL
	}

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetAuthToken(req.AuthToken).
		Get(downloadURL)
	if err != nil {
		return "", &domain.MediaFetchError{Platform: platform, Ref: downloadURL, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &domain.MediaFetchError{
			Platform: platform,
			Ref:      downloadURL,
			Err:      fmt.Errorf("download returned status %d", resp.StatusCode()),
		}
	}

	localURL, err := s.Persist(platform, domain.DirectionReceived, resp.Body(), req.Ext)
	if err != nil {
		return "", &domain.MediaFetchError{Platform: platform, Ref: downloadURL, Err: err}
	}

	return localURL, nil
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ".bin"
	}
	if ext[0] != '.' {
		return "." + ext
	}
	return ext
}
