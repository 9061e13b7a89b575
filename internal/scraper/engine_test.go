// internal/scraper/engine_test.go
package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
)

func itemHTML(name string) []byte {
	return []byte(fmt.Sprintf(`<html><body>
<h1 class="ui-pdp-title">%s</h1>
<span class="andes-money-amount__fraction">1.000</span>
</body></html>`, name))
}

func newTestCoordinator(f Fetcher, ceiling int) *Coordinator {
	return NewCoordinator(f, NewExtractor(config.Default().Selectors.Item), NewLimiter(ceiling), nil, utils.NewNopLogger())
}

func TestCoordinator_PreservesOrderUnderRandomLatency(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, address string) ([]byte, error) {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return itemHTML("item " + address), nil
	})

	addresses := make([]string, 40)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("https://s/p/%d", i)
	}

	got := newTestCoordinator(fetcher, 8).Collect(context.Background(), addresses)
	require.Len(t, got, len(addresses))
	for i, c := range got {
		assert.Equal(t, addresses[i], c.SourceAddress)
		assert.Equal(t, "item "+addresses[i], c.Name)
	}
}

func TestCoordinator_PeakNeverExceedsCeiling(t *testing.T) {
	const ceiling = 3
	var current, observed int32

	fetcher := FetcherFunc(func(ctx context.Context, address string) ([]byte, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&observed)
			if n <= old || atomic.CompareAndSwapInt32(&observed, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return itemHTML("x"), nil
	})

	addresses := make([]string, 30)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("https://s/p/%d", i)
	}

	c := newTestCoordinator(fetcher, ceiling)
	got := c.Collect(context.Background(), addresses)

	assert.Len(t, got, 30)
	assert.LessOrEqual(t, c.Limiter().Peak(), ceiling)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&observed)), ceiling)
	assert.Equal(t, 0, c.Limiter().InFlight())
}

func TestCoordinator_DropsTimedOutUnit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/y":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			w.Write(itemHTML("item" + r.URL.Path))
		}
	}))
	defer server.Close()

	fetcher := NewHTTPClient(ClientConfig{Timeout: 100 * time.Millisecond})
	mm := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	c := NewCoordinator(fetcher, NewExtractor(config.Default().Selectors.Item), NewLimiter(10), mm, utils.NewNopLogger())

	got := c.Collect(context.Background(), []string{server.URL + "/x", server.URL + "/y", server.URL + "/z"})
	require.Len(t, got, 2)
	assert.Equal(t, "item/x", got[0].Name)
	assert.Equal(t, "item/z", got[1].Name)
	assert.Equal(t, 0, c.Limiter().InFlight())
}

func TestCoordinator_DropsStructureMismatch(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, address string) ([]byte, error) {
		if address == "b" {
			return []byte("<html><body><p>captcha</p></body></html>"), nil
		}
		return itemHTML(address), nil
	})

	got := newTestCoordinator(fetcher, 2).Collect(context.Background(), []string{"a", "b", "c"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
}

func TestCoordinator_EmptyInput(t *testing.T) {
	got := newTestCoordinator(FetcherFunc(func(context.Context, string) ([]byte, error) {
		t.Fatal("fetcher must not be called")
		return nil, nil
	}), 1).Collect(context.Background(), nil)
	assert.Empty(t, got)
}

func TestCoordinator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := FetcherFunc(func(ctx context.Context, address string) ([]byte, error) {
		return nil, ctx.Err()
	})
	got := newTestCoordinator(fetcher, 1).Collect(ctx, []string{"a", "b"})
	assert.Empty(t, got)
}

func TestLimiter_Basics(t *testing.T) {
	l := NewLimiter(0)
	assert.Equal(t, 1, l.Capacity())

	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx), "second acquire must block until timeout")

	l.Release()
	assert.Equal(t, 0, l.InFlight())
	assert.Equal(t, 1, l.Peak())
}
