// Package identity owns user records and password credential checks.
//
// Users are created out of band (the "user create" command) and are
// read-only to the login path, which only asks a Verifier whether a
// login name and password match. Stores are interchangeable: Postgres,
// Badger and an in-process map all satisfy Store.
package identity
