// Package middleware provides HTTP middleware for identity propagation and
// the administrator gate.
//
// Authentication itself happens upstream: a fronting auth layer validates
// credentials and forwards the caller's account id and role in trusted
// headers. The middleware here only lifts that identity into the request
// context and enforces role requirements.
package middleware
