// Package cli implements authctl, the operator command line for gophauth.
//
// Commands:
//   - hash-password: prompts twice without echo and prints an argon2id hash
//     suitable for seeding the users table.
//   - verify-token: asks the server to verify an access token (-t, or
//     prompted) and prints the result. Exit status 1 means invalid.
//   - whoami: resolves the identity behind -t / -s credentials.
package cli
