package tikwm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/clipgrab/internal/config"
	"github.com/iconidentify/clipgrab/internal/domain"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TikWMConfig{BaseURL: baseURL + "/", Timeout: 5 * time.Second}, "test-agent")
}

func TestClient_Lookup_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			t.Errorf("path = %q, want /api/", r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "https://www.tiktok.com/@u/video/1" {
			t.Errorf("url param = %q", got)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"code":0,"msg":"success","data":{"id":"1","title":" dance #fyp ","play":"https://cdn.example/play.mp4","hdplay":"/video/media/hdplay/1.mp4","duration":15,"author":{"unique_id":"u"}}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	v, err := c.Lookup(context.Background(), "https://www.tiktok.com/@u/video/1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if v.Title != "dance #fyp" {
		t.Errorf("Title = %q", v.Title)
	}
	if v.PlayURL != "https://cdn.example/play.mp4" {
		t.Errorf("PlayURL = %q", v.PlayURL)
	}
	if v.HDPlayURL != server.URL+"/video/media/hdplay/1.mp4" {
		t.Errorf("HDPlayURL = %q, want resolved against base", v.HDPlayURL)
	}
	if v.BestURL() != v.HDPlayURL {
		t.Errorf("BestURL() = %q, want HD", v.BestURL())
	}
	if v.Author != "u" || v.Duration != 15 {
		t.Errorf("Author = %q, Duration = %d", v.Author, v.Duration)
	}
}

func TestClient_Lookup_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-1,"msg":"Url parsing is failed!"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), "https://vm.tiktok.com/x")
	if !errors.Is(err, domain.ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}

func TestClient_Lookup_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), "https://vm.tiktok.com/x")
	if !errors.Is(err, domain.ErrLookupFailed) {
		t.Errorf("err = %v, want ErrLookupFailed", err)
	}
}

func TestClient_Lookup_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), "https://vm.tiktok.com/x")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestClient_Lookup_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), "https://vm.tiktok.com/x")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_Lookup_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Lookup(context.Background(), "https://vm.tiktok.com/x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestVideo_BestURL_FallsBackToPlay(t *testing.T) {
	v := &Video{PlayURL: "https://a/play.mp4"}
	if v.BestURL() != "https://a/play.mp4" {
		t.Errorf("BestURL() = %q", v.BestURL())
	}
}
