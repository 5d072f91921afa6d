package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass identity resolution: service
// probes and the two endpoints that hand out credentials in the first place.
var publicPaths = map[string]bool{
	"/":                  true,
	"/health":            true,
	"/health/db":         true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
}

// AuthSkipper returns true for requests whose matched route should skip
// authentication. Pass it to RequireIdentity.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
