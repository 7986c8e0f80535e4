package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for request validation
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "reqHeader"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// SearchRequest is the body of POST /api/search-astronauts
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

// DetailsRequest is the body of POST /api/astronaut-details
type DetailsRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// ArticlesQuery holds the query parameters of GET /api/articles
type ArticlesQuery struct {
	Date  string `query:"date" validate:"omitempty,datetime=2006-01-02"`
	Query string `query:"query" validate:"required_without=Date,max=200"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// CoordinatesHeaders carries the observer location for the seeing forecast
type CoordinatesHeaders struct {
	Latitude  string `reqHeader:"X-Latitude" validate:"required,latitude"`
	Longitude string `reqHeader:"X-Longitude" validate:"required,longitude"`
}

// ImageQuery holds the query parameters of GET /api/image
type ImageQuery struct {
	Query string `query:"query" validate:"required,max=200"`
}

// validationMessage turns the first validation failure into a readable detail
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s or %s parameter required", strings.ToLower(fe.Param()), fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must be formatted as YYYY-MM-DD", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// trimFields trims surrounding whitespace so blank values fail "required"
func trimFields(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
