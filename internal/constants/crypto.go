package constants

// PKCEVerifierMinLength is the minimum code verifier length allowed by RFC 7636.
const PKCEVerifierMinLength = 43

// PKCEVerifierMaxLength is the maximum code verifier length allowed by RFC 7636.
const PKCEVerifierMaxLength = 128

// PKCEDefaultVerifierLength is the verifier length used by the login flow.
const PKCEDefaultVerifierLength = 64
