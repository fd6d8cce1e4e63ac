// Package ir provides the canonical verse data model.
//
// # Core Types
//
//   - Registry: the immutable catalogue of the 66 canonical books, resolving
//     names and ids in both directions without regard to case
//   - VerseRef: one "Book Chapter:Verse" reference, produced by ParseRef
//   - VerseIndex: the book -> chapter -> verse -> text structure every
//     lookup queries, built once by a Builder and read-only afterwards
//   - Suggester: bounded candidate lists for lookups that miss
//
// # Canonical Form
//
// A VerseIndex serializes to nested JSON with string keys:
//
//	{
//	  "John": {
//	    "3": {
//	      "16": "For God so loved the world..."
//	    }
//	  }
//	}
//
// Books follow registry order and chapters and verses ascend numerically, so
// equal indexes always serialize to identical bytes and share a Digest.
//
// # Example
//
//	b := ir.NewBuilder(ir.DefaultRegistry())
//	ref, _ := ir.ParseRef("John 3:16")
//	b.Insert(*ref, "For God so loved the world...")
//	idx := b.Build()
//	text, ok := idx.Lookup("john", 3, 16)
package ir
