package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeParse, "bad header: %s", "shp")

	assert.Equal(t, ErrCodeParse, err.Code)
	assert.Equal(t, "bad header: shp", err.Message)
	assert.Equal(t, "PARSE: bad header: shp", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("token rejected")
	err := Wrap(ErrCodeDecryption, cause, "decrypt dataset")

	assert.Equal(t, "DECRYPTION: decrypt dataset: token rejected", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeAuth, "x"), ErrCodeAuth, true},
		{"non-matching code", New(ErrCodeAuth, "x"), ErrCodeParse, false},
		{"outer code", Wrap(ErrCodeParse, New(ErrCodeProjection, "inner"), "outer"), ErrCodeParse, true},
		{"inner code", Wrap(ErrCodeParse, New(ErrCodeProjection, "inner"), "outer"), ErrCodeProjection, true},
		{"fmt wrapped", fmt.Errorf("load: %w", New(ErrCodeDecryption, "x")), ErrCodeDecryption, true},
		{"plain error", errors.New("plain"), ErrCodeAuth, false},
		{"nil", nil, ErrCodeAuth, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Is(tt.err, tt.code))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeExport, GetCode(fmt.Errorf("w: %w", New(ErrCodeExport, "x"))))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(New(ErrCodeAuth, "bad password")))
	assert.True(t, IsFatal(New(ErrCodeDecryption, "bad key")))
	assert.True(t, IsFatal(errors.New("plain")))
}

func TestSelectionOutOfRangeError(t *testing.T) {
	err := &SelectionOutOfRangeError{Index: 7, Len: 3}
	assert.Equal(t, "SELECTION_OUT_OF_RANGE: row 7 outside dataset of 3 records", err.Error())
}
