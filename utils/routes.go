package utils

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

// Routes lists every route registered on r as "METHOD /pattern", sorted.
func Routes(r chi.Routes) ([]string, error) {
	var routes []string
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		routes = append(routes, fmt.Sprintf("%-6s %s", method, strings.Replace(route, "/*/", "/", -1)))
		return nil
	}
	if err := chi.Walk(r, walkFunc); err != nil {
		return nil, err
	}
	sort.Strings(routes)
	return routes, nil
}
