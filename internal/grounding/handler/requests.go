package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "rechtsbron/pkg/domain-errors"
	pstrings "rechtsbron/pkg/platform/strings"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a domain error that
// names the JSON field.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid request")
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		unit := "characters"
		if fe.Kind() == reflect.Slice {
			unit = "items"
		}
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %s %s", fe.Field(), fe.Param(), unit))
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// GroundingRequest is the body of POST /v1/grounding.
type GroundingRequest struct {
	Question    string `json:"question" validate:"required,max=4000"`
	DraftAnswer string `json:"draft_answer" validate:"max=20000"`
}

func (r *GroundingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Question = strings.TrimSpace(r.Question)
	r.DraftAnswer = strings.TrimSpace(r.DraftAnswer)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

func (r *AnalyzeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Question = strings.TrimSpace(r.Question)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query      string   `json:"query" validate:"required,max=1000"`
	ExtraTerms []string `json:"extra_terms" validate:"max=25,dive,max=200"`
}

func (r *SearchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Query = strings.TrimSpace(r.Query)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	r.ExtraTerms = pstrings.DedupeFold(r.ExtraTerms)
	return nil
}

// TermsRequest is the body of POST /v1/terms.
type TermsRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

func (r *TermsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}
