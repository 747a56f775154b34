package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes carried by every error the Service returns.
const (
	CodeValidation = "VALIDATION"
	CodeConflict   = "CONFLICT"
	CodeAuth       = "AUTH"
	CodeNotFound   = "NOT_FOUND"
	CodeDependency = "DEPENDENCY"
)

// Dependencies named in the "dependency" context of CodeDependency errors.
const (
	DependencyStore  = "store"
	DependencyMailer = "mailer"
	DependencyHasher = "hasher"
	DependencyToken  = "token"
	DependencyRandom = "random"
)

// GenericMessage is shown to clients for failures whose details stay in logs.
const GenericMessage = "something went wrong, please try again"

var (
	// ErrInvalidToken is returned for tokens that are malformed or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

var codes = []string{CodeValidation, CodeConflict, CodeAuth, CodeNotFound, CodeDependency}

func clientError(code, msg string) error {
	return oops.Code(code).With("message", msg).Errorf("%s", msg)
}

func validationError(msg string) error { return clientError(CodeValidation, msg) }
func conflictError(msg string) error   { return clientError(CodeConflict, msg) }
func authError(msg string) error       { return clientError(CodeAuth, msg) }
func notFoundError(msg string) error   { return clientError(CodeNotFound, msg) }

func dependencyError(dependency, operation string, err error) error {
	return oops.Code(CodeDependency).
		With("dependency", dependency).
		With("operation", operation).
		Wrap(err)
}

// Code returns the error code of err, or "" for errors not produced here.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	for _, code := range codes {
		if oopsErr.Code() == code {
			return code
		}
	}
	return ""
}

// Dependency returns which collaborator a CodeDependency error came from.
func Dependency(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	dep, _ := oopsErr.Context()["dependency"].(string)
	return dep
}

// PublicMessage extracts the client-facing message from an error. Dependency
// failures and unknown errors collapse to GenericMessage.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return GenericMessage
	}
	switch oopsErr.Code() {
	case CodeValidation, CodeConflict, CodeAuth, CodeNotFound:
		if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return GenericMessage
}
