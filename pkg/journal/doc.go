// Package journal keeps an optional SQLite history of runs and their step
// results. Schema changes ship as embedded golang-migrate migrations.
package journal
