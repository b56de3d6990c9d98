// Package main Album API
//
//	@title						Album API
//	@version					1.0
//	@description				Per-user image album backed by S3 with Cognito sign-in.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from /auth/callback. Format: "Bearer {token}". The session cookie is accepted as well.
//
//	@tag.name					Auth
//	@tag.description			Sign-in and sign-out
//
//	@tag.name					Images
//	@tag.description			Listing, upload and deletion of the caller's images
package main
