// Package storage provides job record stores: a process-local in-memory
// store and a GORM-backed persistent store, plus the background sweeper that
// evicts terminal records past their retention window.
package storage
