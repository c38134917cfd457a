// Package deposits implements the manually moderated top-up workflow: a user
// submits a claim of an external cash payment, an administrator approves or
// rejects it, and approval credits the account's coin balance exactly once.
package deposits
