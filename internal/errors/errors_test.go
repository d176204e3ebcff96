package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"jetfakes/domain/core"
)

func TestWrapDerivesCodeFromSentinel(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{core.NewMissingInputError("frac_tt", "TTJ", "/in/TTJ.csv"), CodeMissingInput},
		{core.NewSchemaMismatchError("ZL", "missing column njets"), CodeSchemaMismatch},
		{core.NewUnknownSampleError("QCD"), CodeInvalidInput},
		{core.ErrRunNotFound, CodeNotFound},
		{fmt.Errorf("disk full"), CodeInternalError},
	}
	for _, tt := range tests {
		wrapped := Wrap(tt.err, "fraction run failed")
		assert.Equal(t, tt.code, GetCode(wrapped), tt.err.Error())
		assert.True(t, stderrors.Is(wrapped, tt.err))
	}
}

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := StorageError("commit failed", fmt.Errorf("locked"))
	outer := Wrapf(inner, "persist %s/%s", "mt", "2017")
	assert.Equal(t, CodeStorageError, GetCode(outer))
	assert.Equal(t, "persist mt/2017: commit failed: locked", outer.Error())
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeConfigInvalid, fmt.Errorf("period is required"))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}
