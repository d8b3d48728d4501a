// Package analytics computes derived views over consolidated datasets:
// date spans, top-N breakdowns, monthly trend and movement series,
// two-period comparisons and column statistics.
//
// Every function is pure: it reads a Table plus parameters and returns
// plain result structs from pkg/contracts/domain. Nothing here mutates a
// table or touches storage, so results stay consistent even while another
// request replaces the cached dataset.
package analytics
