// Package track maintains object identity and semantic versions.
//
// Tracked objects live in an arena keyed by a stable integer id; the
// identity index and all history records refer to that id, never to the
// object value itself. An object is created once, mutated by change
// events, and marked inactive on drop; its history is append-only and
// survives the drop.
package track
