// Package contracts defines the wire types shared between the gateway and
// downstream services: the RequestEnvelope and ResponseEnvelope exchanged
// across the bridge, the AuthPrincipal attached by the authentication
// filter, and the ApiResponse envelope returned to HTTP clients.
package contracts