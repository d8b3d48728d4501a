// Package audit runs rule-based risk checks over a consolidated dataset:
// duplicates, IQR outliers, value concentration, monthly volume anomalies,
// missing data, round-number bias, weekend activity, Benford's-law
// first-digit deviation and split transactions. Every check runs locally
// over the full dataset and returns leveled findings; scan history is kept
// in SQLite.
package audit
