// Package models defines the values the authctl client reads back from the server.
package models

// VerifyResult is the outcome of a token check.
type VerifyResult struct {
	Valid    bool
	UserID   string
	Username string
	Email    string
	UserType string
	Error    string
}

// Identity is the caller as resolved by the server.
type Identity struct {
	UserID   string
	Username string
	Email    string
	UserType string
	Source   string
}
