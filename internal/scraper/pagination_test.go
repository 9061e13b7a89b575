// internal/scraper/pagination_test.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/utils"
)

func listingHTML(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		if h == "" {
			b.WriteString(`<div class="poly-card"><span>no link</span></div>`)
			continue
		}
		fmt.Fprintf(&b, `<div class="poly-card"><a class="poly-component__title" href="%s">item</a></div>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// listingSite serves pages keyed by offset.
type listingSite struct {
	mu     sync.Mutex
	pages  map[string]string
	status map[string]int
	hits   []string
}

func (s *listingSite) handler(w http.ResponseWriter, r *http.Request) {
	offset := r.URL.Query().Get("offset")
	s.mu.Lock()
	s.hits = append(s.hits, offset)
	s.mu.Unlock()

	if code, ok := s.status[offset]; ok {
		w.WriteHeader(code)
		return
	}
	fmt.Fprint(w, s.pages[offset])
}

func newLocator(t *testing.T, site *listingSite, opts ...LocatorOption) (*PageLocator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(site.handler))
	t.Cleanup(server.Close)

	search := config.Default().Search
	search.URLTemplate = server.URL + "/listado/{term}?offset={offset}"
	pl := NewPageLocator(NewHTTPClient(ClientConfig{Timeout: 2 * time.Second}), search, config.Default().Selectors.Listing, utils.NewNopLogger(), opts...)
	return pl, server
}

func TestPageLocator_PageURL(t *testing.T) {
	pl := NewPageLocator(nil, config.Default().Search, config.Default().Selectors.Listing, utils.NewNopLogger())

	tests := []struct {
		n        int
		expected string
	}{
		{0, "https://listado.mercadolibre.com.co/audifonos-inalambricos_Desde_1_NoIndex_True"},
		{1, "https://listado.mercadolibre.com.co/audifonos-inalambricos_Desde_51_NoIndex_True"},
		{2, "https://listado.mercadolibre.com.co/audifonos-inalambricos_Desde_101_NoIndex_True"},
	}
	for _, tt := range tests {
		if got := pl.PageURL("audifonos inalambricos", tt.n); got != tt.expected {
			t.Errorf("PageURL(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}

func TestPageLocator_Locate_AllPages(t *testing.T) {
	site := &listingSite{pages: map[string]string{
		"1":  listingHTML("https://s/p/1", "", "/p/2"),
		"51": listingHTML("https://s/p/3"),
	}}
	pl, server := newLocator(t, site)

	got, err := pl.Locate(context.Background(), "phone", 2)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	expected := []string{"https://s/p/1", server.URL + "/p/2", "https://s/p/3"}
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("Locate = %v, want %v", got, expected)
	}
	if len(site.hits) != 2 {
		t.Errorf("Expected 2 page requests, got %v", site.hits)
	}
}

func TestPageLocator_Locate_StopsOnEmptyPage(t *testing.T) {
	site := &listingSite{pages: map[string]string{
		"1":   listingHTML("https://s/p/1"),
		"51":  "<html><body><p>Sin resultados</p></body></html>",
		"101": listingHTML("https://s/p/9"),
	}}
	pl, _ := newLocator(t, site)

	got, err := pl.Locate(context.Background(), "phone", 5)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(got) != 1 || got[0] != "https://s/p/1" {
		t.Errorf("Expected only first page results, got %v", got)
	}
	if len(site.hits) != 2 {
		t.Errorf("Expected pagination to stop after the empty page, hits: %v", site.hits)
	}
}

func TestPageLocator_Locate_LaterFailureIsNotEscalated(t *testing.T) {
	site := &listingSite{
		pages:  map[string]string{"1": listingHTML("https://s/p/1")},
		status: map[string]int{"51": http.StatusInternalServerError},
	}
	pl, _ := newLocator(t, site)

	got, err := pl.Locate(context.Background(), "phone", 3)
	if err != nil {
		t.Fatalf("Expected later failure to be absorbed, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected accumulated results, got %v", got)
	}
}

func TestPageLocator_Locate_FirstPageFailureEscalates(t *testing.T) {
	site := &listingSite{status: map[string]int{"1": http.StatusForbidden}}
	pl, _ := newLocator(t, site)

	_, err := pl.Locate(context.Background(), "phone", 3)
	if !errors.Is(err, ErrFirstPage) {
		t.Fatalf("Expected ErrFirstPage, got %v", err)
	}
}

func TestPageLocator_Locate_FirstPageEmptyIsNotAnError(t *testing.T) {
	site := &listingSite{pages: map[string]string{"1": "<html></html>"}}
	pl, _ := newLocator(t, site)

	got, err := pl.Locate(context.Background(), "phone", 3)
	if err != nil {
		t.Fatalf("Expected no error for empty first page, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no addresses, got %v", got)
	}
}

func TestPageLocator_Locate_EmptyTerm(t *testing.T) {
	pl := NewPageLocator(nil, config.Default().Search, config.Default().Selectors.Listing, utils.NewNopLogger())
	if _, err := pl.Locate(context.Background(), "  ", 1); !errors.Is(err, ErrEmptyTerm) {
		t.Errorf("Expected ErrEmptyTerm, got %v", err)
	}
}

func TestPageLocator_Locate_RobotsPolicy(t *testing.T) {
	site := &listingSite{pages: map[string]string{
		"1":  listingHTML("https://s/p/1"),
		"51": listingHTML("https://s/p/2"),
	}}

	robots := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /listado/\n")
	}))
	defer robots.Close()

	cp := config.CrawlPolicyConfig{Enabled: true, RobotsURL: robots.URL + "/robots.txt"}

	t.Run("advisory", func(t *testing.T) {
		site.hits = nil
		policy := NewRobotsPolicy(cp, config.Default().Fetch, utils.NewNopLogger())
		pl, _ := newLocator(t, site, WithRobotsPolicy(policy))

		got, err := pl.Locate(context.Background(), "phone", 2)
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Advisory policy must not block fetching, got %v", got)
		}
	})

	t.Run("enforced", func(t *testing.T) {
		site.hits = nil
		enforced := cp
		enforced.Enforce = true
		policy := NewRobotsPolicy(enforced, config.Default().Fetch, utils.NewNopLogger())
		pl, _ := newLocator(t, site, WithRobotsPolicy(policy))

		got, err := pl.Locate(context.Background(), "phone", 2)
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if len(got) != 0 || len(site.hits) != 0 {
			t.Errorf("Enforced policy must stop before fetching, got %v hits %v", got, site.hits)
		}
	})
}
