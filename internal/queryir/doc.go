// Package queryir describes queries over archived log entries.
//
// A query is a tree of plain values: a Select at the root and predicates
// below it. Backends turn the tree into something executable; the querysql
// package compiles it to parameterized SQLite.
//
//	Select{
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: FieldLabel, Value: Str("checkout")},
//	    In{Field: FieldKind, Values: []Value{Str("CallExistingFunction"), Str("Snapshot")}},
//	    Between{Field: FieldTime, Low: 100, High: 200},
//	  }},
//	  Limit: 50,
//	}
//
// Query, Predicate and Value are sealed: only this package implements them,
// so backends can switch over every case.
//
// Results always come back in (session, seq) order. A query never returns
// rows in storage order.
package queryir
