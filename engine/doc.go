// Package engine is the high-level facade over the tracker, the commit
// store, and the catalog provider. One Engine acts on behalf of one
// identity; everything it touches underneath is shared and concurrency
// safe, so independent engines can serve independent actors.
package engine
