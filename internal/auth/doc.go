// Package auth handles credentials, session tokens and Google sign-in.
//
// Sessions are stateless HS256 JWTs carrying the user id, email and name.
// Google ID tokens are verified against Google's published key set. The
// HTTP middleware attaches a Principal to the request context when a valid
// session token is presented as a bearer token or a cookie.
package auth
