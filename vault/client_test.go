package vault

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "secret", 5*time.Second)
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"notes/a.md", "notes/a.md"},
		{"my notes/hello world.md", "my%20notes/hello%20world.md"},
		{".", "."},
		{"a#b/c?d.md", "a%23b/c%3Fd.md"},
	}
	for _, tt := range tests {
		if got := EncodePath(tt.in); got != tt.want {
			t.Errorf("EncodePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})

	if _, err := client.Info(context.Background()); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", gotAuth)
	}
}

func TestClientClassifies401(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Read(context.Background(), "a.md")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
}

func TestClientClassifies404(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Read(context.Background(), "missing.md")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}

func TestClientClassifiesServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := client.Write(context.Background(), "a.md", "content")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Body != "boom" {
		t.Errorf("Body = %q, want boom", apiErr.Body)
	}
}

func TestClientClassifiesRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens here anymore

	client := NewClient(url, "secret", 2*time.Second)
	_, err := client.Info(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *ConnectionError", err)
	}
}

func TestClientClassifiesTimeout(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})
	client.http.Timeout = 50 * time.Millisecond

	_, err := client.Info(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *ConnectionError", err)
	}
}

func TestList(t *testing.T) {
	var gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"subfolders":["drafts"],"files":["a.md"]}`))
	})

	listing, err := client.List(context.Background(), "notes")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if gotPath != "/vault/notes" {
		t.Errorf("request path = %q", gotPath)
	}
	if len(listing.Subfolders) != 1 || listing.Subfolders[0] != "drafts" {
		t.Errorf("Subfolders = %v", listing.Subfolders)
	}
	if len(listing.Files) != 1 || listing.Files[0] != "a.md" {
		t.Errorf("Files = %v", listing.Files)
	}
}

func TestWriteSendsMarkdownBody(t *testing.T) {
	var gotMethod, gotContentType, gotBody string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
	})

	if err := client.Write(context.Background(), "notes/a.md", "# Title"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotContentType != "text/markdown" {
		t.Errorf("Content-Type = %q, want text/markdown", gotContentType)
	}
	if gotBody != "# Title" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestTestConnection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"vault"}`))
	})

	ok, msg := client.TestConnection(context.Background())
	if !ok {
		t.Fatalf("TestConnection() = false, %q", msg)
	}

	_, down := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ok, msg = down.TestConnection(context.Background())
	if ok {
		t.Fatal("TestConnection() = true against 401 server")
	}
	if msg == "" {
		t.Error("TestConnection() returned empty failure message")
	}
}
