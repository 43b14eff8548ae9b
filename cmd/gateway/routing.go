package main

import "github.com/relaygate/gateway/router"

// defaultRoutes is the gateway's built-in path-prefix-to-routing-key table,
// grounded on the original's per-controller routing (auth, account, users,
// recipes). Longest-prefix-wins, so /api/recipes/step can still be split out
// later without disturbing /api/recipes.
var defaultRoutes = []router.Route{
	{Prefix: "/api/auth", RoutingKey: "auth.request"},
	{Prefix: "/api/account", RoutingKey: "account.request"},
	{Prefix: "/api/users", RoutingKey: "user.request"},
	{Prefix: "/api/recipes", RoutingKey: "recipe.request"},
}
