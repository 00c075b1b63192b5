package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synth-market/config"
	"synth-market/scraper"
	"synth-market/utils"
)

func TestFindSpecs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		if r.URL.Query().Get("brand") == "Nobody" {
			_, _ = w.Write([]byte(`{"products":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"products":[
		  {"brand":"Korg","model":"MS-20 Mini","description":"Reissue."},
		  {"brand":"Korg","model":"MS20","category":"Synthesizer","description":"<p>Semi-modular monosynth.</p>",
		   "production_years":"1978-1983","image":"https://img/ms20.jpg",
		   "specs":{"VCO":{"Waveforms":"saw, pulse, triangle","Count":"2"},"Keyboard":{"Keys":"37"}}}
		]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{CatalogBaseURL: srv.URL, HTTPTimeout: 5 * time.Second}
	client, err := scraper.NewClient(cfg, nil, utils.NewNopLogger())
	require.NoError(t, err)
	c := New(cfg, client, utils.NewNopLogger())

	r, err := c.FindSpecs(context.Background(), "Korg", "MS-20")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "MS20", r.Model)
	assert.Equal(t, "1978-1983", r.Year)
	assert.Equal(t, "Semi-modular monosynth.", r.Description)
	assert.Equal(t, []string{"https://img/ms20.jpg"}, r.Images)
	require.Len(t, r.Specs, 3)
	assert.Equal(t, "Keyboard", r.Specs[0].Category)
	assert.Equal(t, "Count", r.Specs[1].Label)

	r, err = c.FindSpecs(context.Background(), "Nobody", "Nothing")
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestFindSpecsNotConfigured(t *testing.T) {
	cfg := &config.Config{}
	client, err := scraper.NewClient(cfg, nil, utils.NewNopLogger())
	require.NoError(t, err)
	_, err = New(cfg, client, utils.NewNopLogger()).FindSpecs(context.Background(), "a", "b")
	assert.ErrorIs(t, err, scraper.ErrNotConfigured)
}
