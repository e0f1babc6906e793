package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldPriceSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"xauPrice":2412.35,"xagPrice":28.91}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	src := NewGoldPriceSource(srv.URL)
	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 2412.35, quotes[InstrumentGold], 0.01)
	assert.InDelta(t, 28.91, quotes[InstrumentSilver], 0.01)
	assert.NotContains(t, quotes, InstrumentUSDToEGP)
}

func TestGoldPriceSourceEmptyItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewGoldPriceSource(srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestMetalsSource(t *testing.T) {
	t.Run("requires key", func(t *testing.T) {
		assert.False(t, NewMetalsSource("", "").Available())
		assert.True(t, NewMetalsSource("k", "").Available())
	})

	t.Run("fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "k", r.URL.Query().Get("api_key"))
			w.Write([]byte(`{"status":"success","metals":{"gold":2390.10,"silver":28.05}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		quotes, err := NewMetalsSource("k", srv.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, 2390.10, quotes[InstrumentGold], 0.01)
		assert.InDelta(t, 28.05, quotes[InstrumentSilver], 0.01)
	})

	t.Run("failure status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"failure"}`)) //nolint:errcheck
		}))
		defer srv.Close()

		_, err := NewMetalsSource("k", srv.URL).Fetch(context.Background())
		assert.Error(t, err)
	})
}

func TestCurrencySource(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":"success","rates":{"EGP":48.21,"EUR":0.93}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		quotes, err := NewCurrencySource(srv.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, 48.21, quotes[InstrumentUSDToEGP], 0.01)
	})

	t.Run("missing egp", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":"success","rates":{"EUR":0.93}}`)) //nolint:errcheck
		}))
		defer srv.Close()

		_, err := NewCurrencySource(srv.URL).Fetch(context.Background())
		assert.Error(t, err)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewCurrencySource(srv.URL).Fetch(context.Background())
		assert.Error(t, err)
	})
}
