package report

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/exitschool/offmarket/internal/model"
)

var minLengths = map[model.Section]int{
	model.SectionExecutiveSummary:    50,
	model.SectionCompanyOverview:     100,
	model.SectionKeyPersonnel:        50,
	model.SectionGrowthOpportunities: 100,
	model.SectionRecommendations:     100,
	model.SectionMarketAnalysis:      100,
	model.SectionFinancialInsights:   100,
	model.SectionRiskAssessment:      100,
}

// MinLength is the minimum character count of a required section.
func MinLength(s model.Section) int {
	return minLengths[s]
}

// SchemaError reports report content that violates the tier schema. It is
// only reachable through a defect, since fallback prose always validates.
type SchemaError struct {
	Tier       model.Tier
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report: %s content failed validation: %s", e.Tier, strings.Join(e.Violations, "; "))
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Validator checks ReportContent against the ENHANCED or BI schema.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Validator{v: v}
}

// Validate returns the content narrowed to its tier, or a *SchemaError.
// ENHANCED content has every BI-only field cleared.
func (v *Validator) Validate(c model.ReportContent) (model.ReportContent, error) {
	var violations []string

	if err := v.v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.ReportContent{}, &SchemaError{Tier: c.Tier, Violations: []string{err.Error()}}
		}
		for _, fe := range verrs {
			violations = append(violations, describe(fe))
		}
	}

	switch c.Tier {
	case model.TierBI:
		for _, s := range []model.Section{model.SectionMarketAnalysis, model.SectionFinancialInsights, model.SectionRiskAssessment} {
			if n := utf8.RuneCountInString(c.Get(s)); n < MinLength(s) {
				violations = append(violations, fmt.Sprintf("%s: must be at least %d characters, got %d", s, MinLength(s), n))
			}
		}
	case model.TierEnhanced:
		for _, s := range []model.Section{
			model.SectionMarketAnalysis, model.SectionFinancialInsights, model.SectionRiskAssessment,
			model.SectionCompetitiveLandscape, model.SectionIndustryTrends,
		} {
			c.Set(s, "")
		}
	}

	if len(violations) > 0 {
		return model.ReportContent{}, &SchemaError{Tier: c.Tier, Violations: violations}
	}
	return c, nil
}

// jsonName reports fields by their JSON key.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "min":
		return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}
