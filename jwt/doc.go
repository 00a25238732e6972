// Package jwt mints the access tokens handed out when a sign-in code is
// consumed, and parses them for the bearer middleware.
package jwt
