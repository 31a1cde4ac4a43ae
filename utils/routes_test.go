package utils

import (
	"net/http"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	r := chi.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.Get("/icon", noop)
	r.Route("/icons", func(r chi.Router) {
		r.Get("/{guid}/{size}", noop)
		r.Post("/{guid}", noop)
	})

	routes, err := Routes(r)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GET    /icon",
		"GET    /icons/{guid}/{size}",
		"POST   /icons/{guid}",
	}, routes)
}
