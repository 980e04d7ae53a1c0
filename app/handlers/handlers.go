// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leaddesk/app/dto"
	businessflow "github.com/amirphl/leaddesk/business_flow"
	"github.com/amirphl/leaddesk/models"
	"github.com/amirphl/leaddesk/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

// newValidator returns a validator with the custom tags used by the request DTOs
func newValidator() *validator.Validate {
	v := validator.New()

	// Usernames are ASCII letters, digits, '.', '_' and '-'
	_ = v.RegisterValidation("username_format", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return false
		}
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') ||
				char == '.' || char == '_' || char == '-') {
				return false
			}
		}
		return true
	})

	return v
}

// validationMessages flattens validator errors into readable messages
func validationMessages(err error) []string {
	var messages []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			messages = append(messages, getValidationErrorMessage(fe))
		}
		return messages
	}
	return []string{err.Error()}
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "eqfield":
		return err.Field() + " must match " + err.Param()
	case "username_format":
		return "Username may contain only letters, digits, '.', '_' and '-'"
	case "datetime":
		return err.Field() + " must be a date formatted as YYYY-MM-DD"
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// createRequestContext creates a context with the default timeout and request-scoped values
func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

func requestID(c fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get("X-Request-ID")
}

// clientMetadata collects the caller's address, agent and request id for audit rows
func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

// parseDateRange reads startDate/endDate query parameters. Both must be present to form a
// range; a malformed value is an error.
func parseDateRange(c fiber.Ctx) (*time.Time, *time.Time, error) {
	start, err := parseOptionalDate(c.Query("startDate"))
	if err != nil {
		return nil, nil, err
	}
	end, err := parseOptionalDate(c.Query("endDate"))
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return nil, businessflow.ErrInvalidDate
	}
	return &t, nil
}

// listingStatus resolves the status filter of a lead listing. An explicit statusMode
// (ALL, PENDING, EXACT) wins; otherwise the legacy callStatus parameter applies: absent
// means no predicate, the literal "All" means pending and any other value is an exact match.
func listingStatus(c fiber.Ctx) (models.StatusFilter, error) {
	callStatus := c.Query("callStatus")
	if mode := strings.TrimSpace(c.Query("statusMode")); mode != "" {
		filter, ok := models.ParseStatusMode(mode, callStatus)
		if !ok {
			return models.StatusFilter{}, fmt.Errorf("statusMode must be one of ALL, PENDING, EXACT")
		}
		return filter, nil
	}

	if callStatus == "" {
		return models.AllStatuses(), nil
	}
	if callStatus == "All" {
		return models.PendingStatus(), nil
	}
	return models.ExactStatus(callStatus), nil
}

// teamStatus resolves the status filter of the team lead listing: absent means pending,
// "All" means no predicate and any other value is an exact match.
func teamStatus(c fiber.Ctx) models.StatusFilter {
	callStatus := c.Query("callStatus")
	switch {
	case callStatus == "":
		return models.PendingStatus()
	case callStatus == "All":
		return models.AllStatuses()
	default:
		return models.ExactStatus(callStatus)
	}
}

// scopedCallBy pins agents to their own leads; team leads and admins may pass any callby
func scopedCallBy(c fiber.Ctx, requested string) string {
	userType, _ := c.Locals("user_type").(string)
	if userType == models.UserTypeAgent {
		username, _ := c.Locals("username").(string)
		return username
	}
	return strings.TrimSpace(requested)
}

// contactQuery reads the contact number filter; the capitalised spelling is accepted for older clients
func contactQuery(c fiber.Ctx) string {
	if v := strings.TrimSpace(c.Query("contactNumber")); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("ContactNumber"))
}

// pageParams reads page and limit query parameters
func pageParams(c fiber.Ctx) dto.PageParams {
	return dto.ParsePageParams(c.Query("page"), c.Query("limit"))
}

// parseID reads a positive integer path parameter
func parseID(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
