// Package store holds the reactive state container for the docsync client.
//
// A Store owns a sequence of immutable State snapshots. Named actions are
// the only way to produce a new snapshot; each action is one atomic
// transition and subscribers are notified in dispatch order. Actions never
// fail: an invalid transition (updating a document that does not exist, a
// progress event for an unknown document) leaves the state unchanged, which
// keeps the client tolerant of out-of-order push events.
//
// Selectors are pure functions over a State. The visible document set is the
// confirmed set with every pending optimistic update layered on top in
// operation order, so a pending overlay wins until it is settled.
//
// There is no package-level store. Construct one with New and inject it.
package store
