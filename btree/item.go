package btree

/*
Entry is a data item stored in the index.
key uniquely identifies an entry and is used for ordering; val is an opaque payload.
*/
type Entry[V any] struct {
	Key int
	Val V
}
