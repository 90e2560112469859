// Package database owns the local transactional store and its error
// taxonomy. Repositories for individual tables live in subpackages and
// compose inside WriteTx closures; nothing outside this tree opens the
// SQLite file directly.
package database
