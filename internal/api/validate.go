package api

import (
	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var validate = validator.New()

// validateStruct runs struct-tag validation and aggregates every
// field-level failure into one ValidationError, instead of stopping at
// the first (spec.md §4.3: "Errors include a field path and a human
// message").
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	fields := make(map[string]interface{})

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		merr = multierror.Append(merr, err)
	} else {
		for _, fe := range validationErrs {
			merr = multierror.Append(merr, fe)
			fields[fe.Namespace()] = fe.Tag()
		}
	}

	return svcerrors.ValidationError(merr.Error(), fields)
}
