package main

import (
	"errors"
	"fmt"
	"net/http"
)

type errKind int

const (
	errValidation errKind = iota + 1
	errConflict
	errUnauthorized
	errForbidden
	errNotFound
	errUpstreamDNS
)

type apiError struct {
	kind errKind
	msg  string
}

func (e *apiError) Error() string {
	return e.msg
}

func validationError(format string, args ...any) error {
	return &apiError{kind: errValidation, msg: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...any) error {
	return &apiError{kind: errConflict, msg: fmt.Sprintf(format, args...)}
}

func unauthorizedError(msg string) error {
	return &apiError{kind: errUnauthorized, msg: msg}
}

func forbiddenError(msg string) error {
	return &apiError{kind: errForbidden, msg: msg}
}

func notFoundError(msg string) error {
	return &apiError{kind: errNotFound, msg: msg}
}

func upstreamDNSError(format string, args ...any) error {
	return &apiError{kind: errUpstreamDNS, msg: fmt.Sprintf(format, args...)}
}

func errKindOf(err error) errKind {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.kind
	}
	return 0
}

// writeError maps the error taxonomy onto HTTP statuses for the DNS
// routes: scope violations answer exactly like a missing credential so a
// probing caller learns nothing about foreign names.
func writeError(w http.ResponseWriter, err error) {
	switch errKindOf(err) {
	case errValidation, errConflict, errUpstreamDNS:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errUnauthorized, errForbidden:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// writeObjectError is the variant for user/node object routes: a scope
// violation renders as not-found so one tenant cannot confirm that
// another tenant's resource exists.
func writeObjectError(w http.ResponseWriter, err error) {
	switch errKindOf(err) {
	case errForbidden:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		writeError(w, err)
	}
}
