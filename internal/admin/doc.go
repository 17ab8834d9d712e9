// Package admin implements authctl, the operator CLI of the auth server.
//
// Commands:
//
//	authctl migrate                       apply pending database migrations
//	authctl create-user [-email E] [-username U]
//	                                      create an active, verified account;
//	                                      the password is read without echo
//
// Database settings come from the server configuration (JSON file,
// TODOAUTH_* environment variables, -d flag).
package admin
