package common

const (
	// AuthorizationHeaderName carries the bearer token on HTTP requests.
	AuthorizationHeaderName = "Authorization"

	// AuthorizationMetadataKey is the lowercase gRPC metadata equivalent.
	AuthorizationMetadataKey = "authorization"

	// BearerPrefix precedes the token in the authorization header.
	BearerPrefix = "Bearer "
)
