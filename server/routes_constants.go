package server

// Route path constants. The callback route is taken from the handlers so it always
// matches the redirect_uri they send.
const (
	RouteIndex = "/"

	RouteSignIn       = "/api/auth/signin"
	RouteSignOut      = "/api/auth/signout"
	RouteSession      = "/api/auth/session"
	RouteRefresh      = "/api/auth/refresh"
	RouteSessionCheck = "/api/auth/session-check"

	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
