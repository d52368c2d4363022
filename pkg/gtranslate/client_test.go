package gtranslate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TranslateConfig{BaseURL: baseURL, Timeout: 5 * time.Second})
}

func TestClient_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/translate_a/single" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if q.Get("client") != "gtx" || q.Get("sl") != "auto" || q.Get("tl") != "id" || q.Get("dt") != "t" {
			t.Errorf("query = %v", q)
		}
		if q.Get("q") != "Hello. World" {
			t.Errorf("q = %q", q.Get("q"))
		}
		w.Write([]byte(`[[["Halo. ","Hello. ",null,null,10],["Dunia","World",null,null,10]],null,"en"]`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Translate(context.Background(), "Hello. World", "id")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "Halo. Dunia" {
		t.Errorf("Translate() = %q, want %q", got, "Halo. Dunia")
	}
}

func TestClient_Translate_Chunked(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[[["x","y"]]]`))
	}))
	defer server.Close()

	text := strings.Repeat("line of text\n", 400) // well over MaxChunkRunes
	got, err := newTestClient(server.URL).Translate(context.Background(), text, "id")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	n := int(atomic.LoadInt32(&calls))
	if n < 2 {
		t.Errorf("calls = %d, want multiple chunks", n)
	}
	if got != strings.Repeat("x", n) {
		t.Errorf("Translate() = %q", got)
	}
}

func TestClient_Translate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, "", domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, "oops", domain.ErrTranslationFailed},
		{"malformed", http.StatusOK, `{"not":"array"}`, domain.ErrTranslationFailed},
		{"empty array", http.StatusOK, `[]`, domain.ErrTranslationFailed},
		{"no segments", http.StatusOK, `[null]`, domain.ErrTranslationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Translate(context.Background(), "hi", "id")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		max       int
		wantCount int
	}{
		{"short", "abc", 10, 1},
		{"exact", "abcdefghij", 10, 1},
		{"no newline", strings.Repeat("a", 25), 10, 3},
		{"newline boundary", "aaaaaaa\nbbbbbbb\nccc", 10, 3},
		{"zero max", "abc", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitChunks(tt.text, tt.max)
			if len(chunks) != tt.wantCount {
				t.Errorf("len(chunks) = %d, want %d (%q)", len(chunks), tt.wantCount, chunks)
			}
			if strings.Join(chunks, "") != tt.text {
				t.Error("chunks should reassemble to the original text")
			}
			if tt.max > 0 {
				for _, c := range chunks {
					if n := len([]rune(c)); n > tt.max {
						t.Errorf("chunk has %d runes, max %d", n, tt.max)
					}
				}
			}
		})
	}
}

func TestSplitChunks_PrefersLineBreaks(t *testing.T) {
	chunks := SplitChunks("aaaaaaa\nbbbbbbb\nccc", 10)
	if chunks[0] != "aaaaaaa\n" {
		t.Errorf("first chunk = %q, want split after newline", chunks[0])
	}
}
