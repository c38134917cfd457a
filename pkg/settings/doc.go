// Package settings stores the published payee identifier per payment
// method. The values are rendered to users as deposit instructions and
// carry no invariant beyond one value per method, last write wins.
package settings
