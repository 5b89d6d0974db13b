// Package types defines the entity types, configuration, and standard error
// types shared by the pipeline board engine, its persistence backends, and its
// outer surfaces (HTTP API and CLI).
//
// A board is an ordered partition of records into buckets. Records are keyed
// by an immutable id; buckets hold the on-screen order of record ids. Every
// record appears in exactly one bucket, and its Status field always names
// that bucket.
package types
