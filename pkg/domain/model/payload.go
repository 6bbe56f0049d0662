package model

import (
	"errors"
	"reflect"
	"strings"

	"github.com/analogj/capsulecd/pkg/domain/types"
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
)

// RepoInfo identifies a repository on the source host
type RepoInfo struct {
	CloneURL      string `json:"clone_url" validate:"required"` // HTTPS clone URL
	Name          string `json:"name" validate:"required"`      // Repository name without owner
	FullName      string `json:"full_name"`                     // owner/name
	DefaultBranch string `json:"default_branch,omitempty"`      // Only known for pull request payloads
}

// Owner returns the owner part of FullName
func (x *RepoInfo) Owner() string {
	owner, _ := SplitFullName(x.FullName)
	return owner
}

// CommitInfo is one side (head or base) of a trigger payload
type CommitInfo struct {
	Sha  string    `json:"sha" validate:"required"`
	Ref  string    `json:"ref" validate:"required"`
	Repo *RepoInfo `json:"repo" validate:"required"`
}

// User is the account that opened a pull request
type User struct {
	Login string `json:"login"`
}

// Payload is the canonical trigger representation. A push trigger only populates Head.
type Payload struct {
	Head   *CommitInfo `json:"head"`
	Base   *CommitInfo `json:"base,omitempty"`
	User   *User       `json:"user,omitempty"`
	Number int         `json:"number,omitempty"`
	State  string      `json:"state,omitempty"`
	Title  string      `json:"title,omitempty"`
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the required keys: sha, ref, repo.clone_url and repo.name
func (x *CommitInfo) Validate() error {
	if x == nil {
		return goerr.Wrap(types.ErrSourcePayloadFormat, "payload is missing commit information")
	}

	err := payloadValidator.Struct(x)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		// Namespace is "CommitInfo.repo.clone_url"; drop the struct name
		_, key, _ := strings.Cut(fieldErrs[0].Namespace(), ".")
		return goerr.Wrap(types.ErrSourcePayloadFormat, "payload is missing required key '"+key+"'", goerr.V("key", key))
	}
	return goerr.Wrap(types.ErrSourcePayloadFormat, err.Error())
}

// SplitFullName splits "owner/name"
func SplitFullName(fullName string) (owner, name string) {
	owner, name, _ = strings.Cut(fullName, "/")
	return owner, name
}
