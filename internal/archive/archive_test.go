package archive_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"liftmail/internal/archive"
	"liftmail/internal/testsupport"
)

func TestKeyLayout(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("x", -5*3600))
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "raw", want: "raw/2024/03/10/rec-1.eml"},
		{prefix: "/raw/", want: "raw/2024/03/10/rec-1.eml"},
		{prefix: "", want: "2024/03/10/rec-1.eml"},
	}
	for _, tt := range tests {
		if got := archive.Key(tt.prefix, at, "rec-1"); got != tt.want {
			t.Fatalf("Key(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestOpenDisabledByDefault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := archive.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Name() != "none" {
		t.Fatalf("expected disabled archive, got %s", store.Name())
	}
	if err := store.Put(context.Background(), "k", []byte("x")); err != nil {
		t.Fatalf("disabled Put: %v", err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archive.Backend = "ftp"
	if _, err := archive.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestMinIORequiresBucket(t *testing.T) {
	if _, err := archive.NewMinIO(archive.MinIOOptions{Endpoint: "127.0.0.1:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

type capturedPut struct {
	method      string
	path        string
	contentType string
}

func TestMinIOPutWritesObject(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []capturedPut
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		puts = append(puts, capturedPut{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type")})
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpoint, _ := url.Parse(server.URL)
	store, err := archive.NewMinIO(archive.MinIOOptions{
		Endpoint:  endpoint.Host,
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
		Bucket:    "mail",
	})
	if err != nil {
		t.Fatalf("NewMinIO: %v", err)
	}

	key := archive.Key("raw", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "rec-9")
	if err := store.Put(context.Background(), key, []byte("Subject: hi\r\n\r\nbody\r\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(puts) != 1 {
		t.Fatalf("expected one request, got %+v", puts)
	}
	got := puts[0]
	if got.method != http.MethodPut || got.path != "/mail/raw/2024/01/02/rec-9.eml" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.contentType != archive.ContentType {
		t.Fatalf("expected content type %q, got %q", archive.ContentType, got.contentType)
	}
}

func TestGCSPutAgainstEmulator(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	store, err := archive.NewGCS(ctx, "liftmail-test")
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	defer store.Close()

	key := archive.Key("raw", time.Now(), "rec-gcs")
	if err := store.Put(ctx, key, []byte("first")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := store.Put(ctx, key, []byte("second")); err != nil {
		t.Fatalf("second Put should be a no-op, got %v", err)
	}
}
