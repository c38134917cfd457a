// Package ledger owns coin balances and the entitlement sets attached to
// accounts.
//
// Balances only move through Credit and Debit, both of which are single
// conditional UPDATE statements: the database serializes concurrent calls on
// the same row, and the balance >= amount guard on debits makes a negative
// balance unrepresentable. The Tx variants run the same statements inside a
// caller-owned transaction so the deposit and purchase workflows can combine
// a balance move with their own writes atomically.
package ledger
