// Package catalog manages the plugin catalog: admin-side CRUD, public
// browsing, and the download counter bumped by successful purchases.
package catalog
