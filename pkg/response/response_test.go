package response

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestSuccessResponse(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		data []any
		want Response
	}{
		{
			name: "without data",
			msg:  "Link deleted successfully.",
			want: Response{
				Status:  StatusSuccess,
				Message: "Link deleted successfully.",
			},
		},
		{
			name: "with data",
			msg:  "Link created successfully.",
			data: []any{map[string]any{"slug": "abc1234"}},
			want: Response{
				Status:  StatusSuccess,
				Message: "Link created successfully.",
				Data:    map[string]any{"slug": "abc1234"},
			},
		},
		{
			name: "extra data is ignored",
			msg:  "Link created successfully.",
			data: []any{
				map[string]any{"slug": "abc1234"},
				map[string]any{"slug": "xyz9876"},
			},
			want: Response{
				Status:  StatusSuccess,
				Message: "Link created successfully.",
				Data:    map[string]any{"slug": "abc1234"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuccessResponse(tt.msg, tt.data...)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	type req struct {
		Destination  string `json:"destination" validate:"required,url"`
		RedirectKind string `json:"redirect_kind" validate:"omitempty,oneof=permanent temporary temporary_strict"`
	}

	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	t.Run("non-validator error passes through without details", func(t *testing.T) {
		got := ValidationErrorResponse(assert.AnError)

		assert.Equal(t, StatusError, got.Status)
		assert.Equal(t, "Validation failed.", got.Message)
		assert.Empty(t, got.Details)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := validate.Struct(req{})
		got := ValidationErrorResponse(err)

		assert.Equal(t, StatusError, got.Status)
		assert.Equal(t, []any{
			ValidationError{Field: "destination", Message: "this field is required"},
		}, got.Details)
	})

	t.Run("multiple failed fields", func(t *testing.T) {
		err := validate.Struct(req{
			Destination:  "not a url",
			RedirectKind: "eternal",
		})
		got := ValidationErrorResponse(err)

		assert.Equal(t, []any{
			ValidationError{Field: "destination", Message: "invalid url"},
			ValidationError{Field: "redirect_kind", Message: "value is not one of the allowed options"},
		}, got.Details)
	})
}
