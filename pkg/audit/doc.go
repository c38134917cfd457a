// Package audit records administrator actions against the moderation
// surface so every deposit decision and catalog mutation is attributable.
package audit
