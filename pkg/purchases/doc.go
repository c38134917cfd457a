// Package purchases implements the purchase and entitlement engine: an
// all-or-nothing debit-and-grant per purchase, and the entitlement check
// gating artifact downloads.
package purchases
