// Package cli implements the interactive messenger client.
//
// On start the user is prompted for an account name (unless one was given
// via config) and a password, which are used for the challenge-response
// handshake with the server. After that a read-eval-print loop accepts
// commands:
//
//	help       — show available commands
//	message    — send a message to another user
//	contacts   — show the contact list
//	add        — add a user to the contact list
//	del        — remove a user from the contact list
//	users      — list all registered users
//	key        — fetch another user's public key
//	exit|quit  — leave the program
//
// Incoming messages and server refresh notifications are printed as they
// arrive, interleaved with the prompt.
package cli
