package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"unichat-relay/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func TestPersist_UniqueNamesUnderRapidCalls(t *testing.T) {
	store := newTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		url, err := store.Persist(domain.PlatformWhatsApp, domain.DirectionReceived, []byte("x"), ".jpg")
		if err != nil {
			t.Fatalf("Persist returned error: %v", err)
		}
		if seen[url] {
			t.Fatalf("Persist produced duplicate URL %s", url)
		}
		seen[url] = true
	}
}

func TestPersist_URLMapsToFileOnDisk(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Persist(domain.PlatformMessenger, domain.DirectionReceived, []byte("payload"), "mp3")
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	if !strings.HasPrefix(url, URLPrefix+"/messenger/received/") {
		t.Fatalf("unexpected URL %s", url)
	}
	if !strings.HasSuffix(url, ".mp3") {
		t.Fatalf("expected extension to be normalized with a dot, got %s", url)
	}

	path := filepath.Join(store.Root(), strings.TrimPrefix(url, URLPrefix+"/"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestStage_WritesIntoSentDir(t *testing.T) {
	store := newTestStore(t)

	staged, err := store.Stage(domain.PlatformWhatsApp, strings.NewReader("media bytes"), ".png")
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}

	if staged.Size != int64(len("media bytes")) {
		t.Errorf("expected size %d, got %d", len("media bytes"), staged.Size)
	}
	if !strings.HasPrefix(staged.LocalURL, URLPrefix+"/whatsapp/sent/") {
		t.Errorf("unexpected staged URL %s", staged.LocalURL)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Errorf("expected staged file on disk: %v", err)
	}
}

func TestFetchAndPersist_TwoStepResolve(t *testing.T) {
	store := newTestStore(t)

	var gotAuth string
	mux := http.NewServeMux()

	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/media-id", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/download"})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-content"))
	})

	url, err := store.FetchAndPersist(context.Background(), domain.PlatformWhatsApp, FetchRequest{
		ResolveURL: server.URL + "/media-id",
		AuthToken:  "token-123",
		Ext:        ".jpg",
	})
	if err != nil {
		t.Fatalf("FetchAndPersist returned error: %v", err)
	}

	if gotAuth != "Bearer token-123" {
		t.Errorf("expected bearer auth on resolve call, got %q", gotAuth)
	}

	path := filepath.Join(store.Root(), strings.TrimPrefix(url, URLPrefix+"/"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected persisted file: %v", err)
	}
	if string(data) != "binary-content" {
		t.Errorf("unexpected persisted contents %q", data)
	}
}

func TestFetchAndPersist_DirectDownload(t *testing.T) {
	store := newTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct"))
	}))
	defer server.Close()

	url, err := store.FetchAndPersist(context.Background(), domain.PlatformMessenger, FetchRequest{
		URL: server.URL + "/file.jpg",
		Ext: ".jpg",
	})
	if err != nil {
		t.Fatalf("FetchAndPersist returned error: %v", err)
	}
	if !strings.Contains(url, "/messenger/received/") {
		t.Errorf("unexpected URL %s", url)
	}
}

func TestFetchAndPersist_DownloadFailureReturnsMediaFetchError(t *testing.T) {
	store := newTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := store.FetchAndPersist(context.Background(), domain.PlatformMessenger, FetchRequest{
		URL: server.URL + "/gone.jpg",
	})
	if err == nil {
		t.Fatalf("expected error for failed download")
	}

	var fetchErr *domain.MediaFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.MediaFetchError, got %T", err)
	}
	if fetchErr.Platform != domain.PlatformMessenger {
		t.Errorf("expected platform messenger on error, got %s", fetchErr.Platform)
	}
}

func TestFetchAndPersist_ResolveFailureReturnsMediaFetchError(t *testing.T) {
	store := newTestStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := store.FetchAndPersist(context.Background(), domain.PlatformWhatsApp, FetchRequest{
		ResolveURL: server.URL + "/media-id",
		AuthToken:  "expired",
	})

	var fetchErr *domain.MediaFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *domain.MediaFetchError, got %T", err)
	}
}
