package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

func TestSearch_ReturnsLinksInRankOrder(t *testing.T) {
	var gotQuery, gotCx string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCx = r.URL.Query().Get("cx")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				map[string]any{"link": "https://a.tistory.com/1"},
				map[string]any{"link": "https://velog.io/@b/2"},
				map[string]any{"link": "https://velog.io/@c/3"},
			},
		})
	}))
	defer srv.Close()

	c, err := New(context.Background(), logger.Nop(), Config{APIKey: "k", EngineID: "cx1", Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	links, err := c.Search(context.Background(), "JPA site:tistory.com OR site:velog.io", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(links) != 2 || links[0] != "https://a.tistory.com/1" || links[1] != "https://velog.io/@b/2" {
		t.Fatalf("links=%v", links)
	}
	if gotCx != "cx1" || gotQuery != "JPA site:tistory.com OR site:velog.io" {
		t.Fatalf("cx=%q q=%q", gotCx, gotQuery)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
