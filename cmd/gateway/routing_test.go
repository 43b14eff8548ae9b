package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaygate/gateway/router"
)

func TestDefaultRoutesResolveKnownPrefixes(t *testing.T) {
	table := router.NewTable(defaultRoutes)

	cases := map[string]string{
		"/api/auth/login":   "auth.request",
		"/api/account/me":   "account.request",
		"/api/users/42":     "user.request",
		"/api/recipes/7":    "recipe.request",
	}

	for path, want := range cases {
		got, ok := table.Match(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
}

func TestDefaultRoutesRejectUnknownPrefix(t *testing.T) {
	table := router.NewTable(defaultRoutes)
	_, ok := table.Match("/api/unknown")
	assert.False(t, ok)
}
