// Package auth defines the identity model the storefront engine operates on.
//
// The engine never performs credential checks itself: a fronting
// authentication layer validates the caller and hands the engine an already
// trusted account id and role. This package only carries that identity and
// answers role questions about it.
package auth
