package handler

import (
	"strings"

	addresshandler "sixd/internal/address/handler"
	addressmodels "sixd/internal/address/models"
	identitymodels "sixd/internal/identity/models"
	dErrors "sixd/pkg/domain-errors"
)

// maxAssertionLength bounds provider tokens; real ID tokens are a few KB.
const maxAssertionLength = 8192

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	IDToken     string `json:"id_token"`
	DisplayName string `json:"display_name,omitempty"`
}

// Validate implements httputil.Validatable.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validateAssertion(&r.IDToken); err != nil {
		return err
	}
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if r.DisplayName != "" {
		name, err := identitymodels.NormalizeDisplayName(r.DisplayName)
		if err != nil {
			return err
		}
		r.DisplayName = name
	}
	return nil
}

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	IDToken     string                         `json:"id_token"`
	DisplayName string                         `json:"display_name"`
	Address     *addresshandler.AddressRequest `json:"address"`

	parsedAddress addressmodels.AddressData
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validateAssertion(&r.IDToken); err != nil {
		return err
	}
	name, err := identitymodels.NormalizeDisplayName(r.DisplayName)
	if err != nil {
		return err
	}
	r.DisplayName = name

	data, err := addresshandler.ParseAddress(r.Address)
	if err != nil {
		return err
	}
	r.parsedAddress = data
	return nil
}

// AddressData returns the validated address.
func (r *RegisterRequest) AddressData() addressmodels.AddressData {
	return r.parsedAddress
}

func validateAssertion(raw *string) error {
	*raw = strings.TrimSpace(*raw)
	if *raw == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "id_token is required")
	}
	if len(*raw) > maxAssertionLength {
		return dErrors.New(dErrors.CodeValidation, "id_token is too long")
	}
	return nil
}
