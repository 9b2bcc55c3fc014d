package common

// AuthorizationHeaderName carries the bearer token on every protected request.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// DefaultStoragePrefix is the top-level key prefix for uploaded objects.
const DefaultStoragePrefix = "uploads"
