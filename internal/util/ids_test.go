package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ana@techacademy.com"))
	assert.True(t, ValidEmail(" ana@techacademy.com "))
	assert.False(t, ValidEmail("ana@techacademy"))
	assert.False(t, ValidEmail("ana techacademy.com"))
	assert.False(t, ValidEmail(""))
}

func TestGeneratePassword(t *testing.T) {
	p, err := GeneratePassword(GeneratedPasswordLength)
	require.NoError(t, err)
	assert.Len(t, p, GeneratedPasswordLength)
	for _, r := range p {
		assert.True(t, strings.ContainsRune(passwordAlphabet, r))
	}

	short, err := GeneratePassword(3)
	require.NoError(t, err)
	assert.Len(t, short, MinPasswordLength)
}

func TestIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewPlanID(), PlanIDPrefix))
	id := NewUserID()
	assert.True(t, strings.HasPrefix(id, UserIDPrefix))
	assert.Len(t, id, len(UserIDPrefix)+16)
	assert.NotEqual(t, NewUserID(), NewUserID())
}
