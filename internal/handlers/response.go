package handlers

import (
	"errors"
	"strings"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:     fiber.StatusBadRequest,
	apperrors.KindAuthentication: fiber.StatusUnauthorized,
	apperrors.KindForbidden:      fiber.StatusForbidden,
	apperrors.KindNotFound:       fiber.StatusNotFound,
	apperrors.KindConflict:       fiber.StatusConflict,
	apperrors.KindService:        fiber.StatusInternalServerError,
}

// ErrorHandler renders handler errors as the JSON envelope. The cause of a
// service error never reaches the client; RequestLogger logs it.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(envelope{Message: ferr.Message})
	}
	kind := apperrors.KindOf(err)
	return c.Status(kindStatus[kind]).JSON(envelope{Message: apperrors.Message(err)})
}

func ok(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Message: message, Data: data})
}

// bindJSON parses the body into req and runs its validate tags.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.Validation("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.Validation("%s", formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of: "+fe.Param())
		case "min":
			msgs = append(msgs, fe.Field()+" must have at least "+fe.Param()+" item(s)")
		case "gte":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func parseID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid %s", field)
	}
	return id, nil
}

// parseOptionalID treats an empty value as absent.
func parseOptionalID(raw, field string) (*primitive.ObjectID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
