package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/pkg/jwt"
)

func TestGenerateYParse_RoundTrip(t *testing.T) {
	tok, err := jwt.Generate("s3cret", "ana", jwt.RolePharmacist, "pharma-sentinel", 5)
	require.NoError(t, err)

	op, role, err := jwt.Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "ana", op)
	assert.Equal(t, jwt.RolePharmacist, role)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	tok, err := jwt.Generate("s3cret", "ana", jwt.RoleAdmin, "pharma-sentinel", 5)
	require.NoError(t, err)

	_, _, err = jwt.Parse("otro", tok)
	assert.Error(t, err)
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := jwt.Generate("", "ana", jwt.RoleAdmin, "x", 5)
	assert.Error(t, err)
}

func TestParse_TokenExpirado(t *testing.T) {
	tok, err := jwt.Generate("s3cret", "ana", jwt.RoleAdmin, "pharma-sentinel", -1)
	require.NoError(t, err)

	_, _, err = jwt.Parse("s3cret", tok)
	assert.Error(t, err, "token expirado debe retornar error")
}
