package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/pkg/config"
)

func TestLoadCatalog_ArchivoInexistenteUsaDefault(t *testing.T) {
	c, err := config.LoadCatalog(filepath.Join(t.TempDir(), "no-existe.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Drugs, 10)
	assert.Equal(t, 1, c.Rank("Epinephrine"))
	assert.Equal(t, 4, c.Rank("propofol"), "la búsqueda de rango no distingue mayúsculas")
	assert.Contains(t, c.SearchTerms, "Sodium Chloride")
}

func TestLoadCatalog_DesdeYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.yaml")
	yml := "drugs:\n  - name: Heparin\n    rank: 2\n  - name: Insulin\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c, err := config.LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Heparin", "Insulin"}, c.Names())
	assert.Equal(t, 2, c.Rank("Heparin"))
	assert.Equal(t, 2, c.Rank("Insulin"), "sin rank explícito toma la posición")
	assert.Equal(t, []string{"Heparin", "Insulin"}, c.SearchTerms)
	assert.False(t, c.Contains("Morphine"))
}

func TestParseCatalog_Invalido(t *testing.T) {
	_, err := config.ParseCatalog([]byte("drugs: []\n"))
	assert.Error(t, err)

	_, err = config.ParseCatalog([]byte("drugs:\n  - name: A\n  - name: a\n"))
	assert.Error(t, err, "duplicados deben rechazarse")
}
