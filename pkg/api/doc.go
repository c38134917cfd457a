// Package api is the HTTP+JSON boundary of the storefront engine. Handlers
// parse and validate requests, call into the services, and translate the
// error taxonomy into status codes. Identity arrives pre-validated in
// request headers set by the fronting auth layer.
package api
