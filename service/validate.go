package service

import (
	"errors"
	"reflect"
	"strings"

	"forum/models"

	"github.com/go-playground/validator/v10"
)

const (
	MaxTitleLength = 30
	MaxTextLength  = 30000
)

// validate checks the `validate` tags on models; field names are reported by
// their json name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateFields checks the rules shared by drafts and posts. Tags must be
// normalized first.
func validateFields(f models.DraftFields) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return invalid("", "parameters invalid")
	}
	fe := ve[0]
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if field == "tags" {
		if fe.Kind() == reflect.Slice {
			return invalid("tags", "at most %d tags are allowed", models.MaxTags)
		}
		return invalid("tags", "tags must be at most %d characters, got %q", models.MaxTagLength, fe.Value())
	}
	return invalid(field, "%s is invalid", field)
}

// validatePost applies the publish rules on top of validateFields.
func validatePost(f models.DraftFields) error {
	switch failedRule(validate.Var(strings.TrimSpace(f.Title), "required,max=30")) {
	case "required":
		return invalid("title", "title is required")
	case "max":
		return invalid("title", "title is longer than %d characters", MaxTitleLength)
	}
	if failedRule(validate.Var(strings.TrimSpace(f.Text), "required")) != "" {
		return invalid("text", "content is required")
	}
	if failedRule(validate.Var(f.Text, "max=30000")) != "" {
		return invalid("text", "content is longer than %d characters", MaxTextLength)
	}
	return validateFields(f)
}

// failedRule names the first validator rule err reports, or "" for nil.
func failedRule(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return ve[0].Tag()
	}
	if err != nil {
		return "invalid"
	}
	return ""
}

// normalizeTags trims tags and drops empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
