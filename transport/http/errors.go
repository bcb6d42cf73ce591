package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report json field names
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// invalidBody rejects a request whose body failed to bind
func invalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid body",
		"details": bodyIssues(err),
	})
}

func bodyIssues(err error) []gin.H {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		issues := make([]gin.H, 0, len(validationErrs))
		for _, fe := range validationErrs {
			issues = append(issues, gin.H{
				"path":    []string{fe.Field()},
				"message": validationMessage(fe),
			})
		}
		return issues
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []gin.H{{
			"path":    []string{typeErr.Field},
			"message": "expected " + typeErr.Type.String(),
		}}
	}

	return []gin.H{{
		"path":    []string{},
		"message": "malformed JSON",
	}}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
