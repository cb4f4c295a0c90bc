// Package audit stores lifecycle events in a SQLite database so launches,
// crashes and session closes can be reviewed after the fact.
package audit
