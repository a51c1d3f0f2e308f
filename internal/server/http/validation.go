package httpserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-feed-service/internal/domain"
)

const (
	maxQueryLength   = 512
	maxPaperIDLength = 128
)

// feedRequest holds the query parameters of GET /feed.
type feedRequest struct {
	Sort string `json:"sort" validate:"omitempty,feed_sort"`
}

// searchRequest holds the query parameters of GET /search.
type searchRequest struct {
	Query string `json:"q" validate:"max=512"`
}

// paperRequest identifies a paper by its path parameter.
type paperRequest struct {
	PaperID string `json:"paper_id" validate:"required,max=128,printascii"`
}

// overviewRequest holds the parameters of GET /papers/{paperID}/overview.
type overviewRequest struct {
	PaperID  string `json:"paper_id" validate:"required,max=128,printascii"`
	Language string `json:"lang" validate:"omitempty,bcp47_language_tag"`
}

// languageRequest is the JSON body of PUT /preferences/language.
type languageRequest struct {
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("feed_sort", validateFeedSort); err != nil {
		panic(fmt.Sprintf("register feed_sort validation: %v", err))
	}
	return v
}

func validateFeedSort(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	for _, fs := range domain.FeedSorts {
		if strings.EqualFold(s, string(fs)) {
			return true
		}
	}
	return false
}

// validateRequest validates req and converts the first failure into a
// domain.ValidationError.
func (s *Server) validateRequest(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(fe.Field(), validationMessage(fe))
	}
	return domain.NewValidationError("request", "invalid request")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "printascii":
		return "must contain printable ASCII characters only"
	case "bcp47_language_tag":
		return "must be a language code such as en or pt-br"
	case "feed_sort":
		names := make([]string, len(domain.FeedSorts))
		for i, fs := range domain.FeedSorts {
			names[i] = string(fs)
		}
		return "must be one of: " + strings.Join(names, ", ")
	default:
		return "is invalid"
	}
}
