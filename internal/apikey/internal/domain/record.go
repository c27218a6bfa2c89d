// Package domain contains the core domain types for API key resolution.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Identity is the caller-supplied user identity a key is resolved for.
type Identity struct {
	// Issuer is the stable user identifier assigned by the identity provider.
	Issuer string

	// Email is the user's email address. It becomes the record name.
	Email string
}

// Validate reports ErrBadRequest when the issuer is missing.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.Issuer) == "" {
		return fmt.Errorf("%w: issuer is required", ErrBadRequest)
	}
	return nil
}

// Record is an API key record as held by the key directory. At most one
// record is expected per (ProjectID, CustomAccountID) pair; the directory
// enforces that, not this service.
type Record struct {
	// Key is the opaque secret token.
	Key string `json:"key"`

	// CustomAccountID is the issuer the key is bound to.
	CustomAccountID string `json:"customAccountId"`

	// Name is the percent-encoded email of the owner.
	Name string `json:"name"`

	// ProjectID is the directory project the key belongs to.
	ProjectID string `json:"projectId"`

	// raw is the record exactly as the directory returned it.
	raw json.RawMessage
}

// recordFields has Record's fields without its methods.
type recordFields Record

// UnmarshalJSON decodes the known fields and keeps the original bytes so the
// record can be returned to callers verbatim.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Record(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the directory's original encoding when there is one,
// including fields this package does not model.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(recordFields(r))
}

// EncodeName percent-encodes an email the way ECMAScript encodeURIComponent
// does: everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is escaped, and
// spaces become %20.
func EncodeName(email string) string {
	escaped := url.QueryEscape(email)
	return componentReplacer.Replace(escaped)
}

// componentReplacer undoes the QueryEscape choices that differ from
// encodeURIComponent. A literal '+' is already %2B at this point, so any
// remaining '+' came from a space.
var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
