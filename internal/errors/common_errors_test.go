package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewConflictError("a pipeline run is already active"),
			want: "[CONFLICT] a pipeline run is already active",
		},
		{
			name: "with cause",
			err:  NewParsingError("unreadable workbook sheet", stderrors.New("cell B4 is not numeric")),
			want: "[PARSING] unreadable workbook sheet: cell B4 is not numeric",
		},
		{
			name: "not found names the resource",
			err:  NewNotFoundError("indicator artifact"),
			want: "[NOT_FOUND] indicator artifact not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := NewStorageError("cannot write artifact", cause)

	assert.True(t, stderrors.Is(err, cause))

	wrapped := fmt.Errorf("export stage: %w", err)
	var appErr *AppError
	require.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewAppValidationError("malformed balance record", nil).
		WithContext("file", "balance_2023_01.xlsx").
		WithContext("row", 14)

	assert.Equal(t, "balance_2023_01.xlsx", err.Context["file"])
	assert.Equal(t, 14, err.Context["row"])

	// Chaining returns the same error value.
	same := err.WithContext("bank", "Banco General")
	assert.Same(t, err, same)
}

func TestConstructorTypes(t *testing.T) {
	assert.Equal(t, ErrTypeParsing, NewParsingError("m", nil).Type)
	assert.Equal(t, ErrTypeStorage, NewStorageError("m", nil).Type)
	assert.Equal(t, ErrTypeValidation, NewAppValidationError("m", nil).Type)
	assert.Equal(t, ErrTypeNotFound, NewNotFoundError("m").Type)
	assert.Equal(t, ErrTypeConflict, NewConflictError("m").Type)
	assert.Equal(t, ErrTypeNetwork, NewAppError(ErrTypeNetwork, "m", nil).Type)
}
