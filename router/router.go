package router

import (
	"sort"
	"strings"
)

// Route binds one inbound path prefix to the routing key used to publish
// matching requests onto the services exchange.
type Route struct {
	Prefix     string
	RoutingKey string
}

// Table is the resolved, longest-prefix-first routing table. Build once at
// startup; safe for concurrent read-only use.
type Table struct {
	routes []Route
}

// NewTable builds a Table from routes, pre-sorting by prefix length so
// Match always prefers the most specific entry.
func NewTable(routes []Route) *Table {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Table{routes: sorted}
}

// Match resolves path to a routing key. The second return value is false
// when no configured prefix matches — the caller MUST treat that as a 404,
// never as a guessed destination.
func (t *Table) Match(path string) (string, bool) {
	for _, r := range t.routes {
		if strings.HasPrefix(path, r.Prefix) {
			return r.RoutingKey, true
		}
	}
	return "", false
}
