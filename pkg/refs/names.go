// Package refs validates repository names, tag names and digests, and
// provides streaming digest computation shared by the storage and upload
// components.
package refs

import (
	"fmt"
	"regexp"
)

// ValidationError reports which field failed which rule on which value.
type ValidationError struct {
	Field string
	Rule  string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s (%s)", e.Field, e.Value, e.Rule)
}

var (
	repositoryNameRe = regexp.MustCompile(`^[a-z0-9]+([._-][a-z0-9]+)*(/[a-z0-9]+([._-][a-z0-9]+)*)*$`)
	tagNameRe        = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	digestRe         = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

const (
	maxRepositoryNameLen = 255
	maxTagNameLen        = 128
)

// ValidateRepositoryName checks name against the registry's repository
// naming rule: lowercase path segments separated by '/', each segment
// alphanumeric with single '.', '_' or '-' separators.
func ValidateRepositoryName(name string) error {
	if name == "" || len(name) > maxRepositoryNameLen {
		return &ValidationError{Field: "name", Rule: "length 1..255", Value: name}
	}
	if !repositoryNameRe.MatchString(name) {
		return &ValidationError{Field: "name", Rule: "pattern " + repositoryNameRe.String(), Value: name}
	}
	return nil
}

// ValidateTagName checks reference against the registry's tag naming rule.
func ValidateTagName(tag string) error {
	if tag == "" || len(tag) > maxTagNameLen {
		return &ValidationError{Field: "tag", Rule: "length 1..128", Value: tag}
	}
	if !tagNameRe.MatchString(tag) {
		return &ValidationError{Field: "tag", Rule: "pattern " + tagNameRe.String(), Value: tag}
	}
	return nil
}

// ValidateDigest checks that s is a well-formed "sha256:<64 hex>" digest
// string, delegating the canonical form check to go-digest once the
// algorithm prefix is confirmed to be the only one this registry accepts.
func ValidateDigest(s string) error {
	if !digestRe.MatchString(s) {
		return &ValidationError{Field: "digest", Rule: "pattern sha256:<64 hex>", Value: s}
	}
	d := parseDigest(s)
	if err := d.Validate(); err != nil {
		return &ValidationError{Field: "digest", Rule: err.Error(), Value: s}
	}
	return nil
}

// IsDigestReference reports whether s looks like a digest (as opposed to a
// tag) reference, used by callers that accept either in a manifest/tag path
// segment.
func IsDigestReference(s string) bool {
	return digestRe.MatchString(s)
}
