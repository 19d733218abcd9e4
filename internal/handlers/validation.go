package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/ovpnhub/pkg/errors"
	"github.com/charlesng35/ovpnhub/pkg/response"
	appValidator "github.com/charlesng35/ovpnhub/pkg/validator"
)

const maxBodyBytes = 1 << 20

// bindAndValidate decodes the JSON payload into dest, rejecting unknown fields, and runs
// struct validation rules. When either step fails, an error response is written and
// false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if c.Request == nil || c.Request.Body == nil {
		response.Error(c, appErrors.NewBadRequest("request body is required"))
		return false
	}

	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeDecodeError(err)))
		return false
	}
	if decoder.More() {
		response.Error(c, appErrors.NewBadRequest("request body must contain a single JSON object"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(formatValidationError(err), err))
		return false
	}

	return true
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s must be a %s", prettifyFieldName(typeErr.Field), typeErr.Type.Kind())
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "invalid JSON payload"
	}
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			field := prettifyFieldName(failure.Field)
			switch failure.Tag {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", field))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", field, failure.Param))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", field, failure.Param))
			case "gt":
				messages = append(messages, fmt.Sprintf("%s must be greater than %s", field, failure.Param))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of %s", field, failure.Param))
			case "ipv4cidr":
				messages = append(messages, fmt.Sprintf("%s must be an IPv4 network in a.b.c.d/n form", field))
			case "qos_priority":
				messages = append(messages, fmt.Sprintf("%s must be one of low, medium, high", field))
			default:
				if failure.Param != "" {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param))
				} else {
					messages = append(messages, fmt.Sprintf("%s failed validation: %s", field, failure.Tag))
				}
			}
		}
		return strings.Join(messages, "; ")
	}

	return "invalid request payload"
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

// parseIDParam reads a positive numeric path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(key))
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("%s must be a positive integer", key)))
		return 0, false
	}
	return uint(id), true
}

func parseBoolQuery(c *gin.Context, key string) (bool, bool) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return false, true
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("%s must be true or false", key)))
		return false, false
	}
	return parsed, true
}
