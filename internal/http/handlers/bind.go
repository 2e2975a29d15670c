package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
)

// Report json/form names in validation details instead of Go field names.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(tagName)
	}
}

func tagName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

func bindQuery(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return bindError(err)
	}
	return nil
}

// bindError turns binding failures into VALIDATION_ERROR with one detail
// entry per offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fieldName(fe)] = rule(fe)
		}
		return apierr.Validation("request validation failed", details)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apierr.Validation("request validation failed", map[string]any{
			typeErr.Field: "must be " + typeErr.Type.String(),
		})
	}
	if errors.Is(err, io.EOF) {
		return apierr.Validation("request body is required", nil)
	}
	return apierr.Validation("malformed request", map[string]any{"body": err.Error()})
}

// fieldName drops the request struct prefix from the namespace.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		ns = fe.Field()
	}
	return ns
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min", "max", "len", "gte", "lte":
		return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	case "oneof":
		return "one of: " + fe.Param()
	case "uuid", "uuid4":
		return "must be a uuid"
	default:
		if fe.Param() != "" {
			return fe.Tag() + "=" + fe.Param()
		}
		return fe.Tag()
	}
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apierr.Validation("invalid "+name, map[string]any{name: "must be a uuid"})
	}
	return id, nil
}

// parseUUIDs converts validated string ids.
func parseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apierr.Validation("invalid "+field, map[string]any{field: "must contain uuids"})
		}
		out = append(out, id)
	}
	return out, nil
}

func optionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apierr.Validation("invalid "+field, map[string]any{field: "must be a uuid"})
	}
	return &id, nil
}

func requestUser(c *gin.Context) uuid.UUID {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

func requestDBC(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}
