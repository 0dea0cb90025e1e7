package canvas

import (
	"github.com/go-playground/validator/v10"
)

// draftValidator checks drafts against their struct tags
var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// itemtype accepts the known item types only
	if err := v.RegisterValidation("itemtype", func(fl validator.FieldLevel) bool {
		return ItemType(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}
