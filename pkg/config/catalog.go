package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MonitoredDrug medicamento vigilado con su rango de criticidad (1 = más crítico).
// Aliases son nombres genéricos con los que el registro oficial puede reportarlo.
type MonitoredDrug struct {
	Name    string   `yaml:"name"`
	Rank    int      `yaml:"rank"`
	Type    string   `yaml:"type"`
	Aliases []string `yaml:"aliases"`
}

// Catalog lista de medicamentos vigilados y términos de búsqueda para el registro de desabastecimiento.
type Catalog struct {
	Drugs       []MonitoredDrug `yaml:"drugs"`
	SearchTerms []string        `yaml:"search_terms"`
}

// DefaultCatalog catálogo embebido usado cuando no hay archivo.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Drugs: []MonitoredDrug{
			{Name: "Epinephrine", Rank: 1, Type: "Emergency", Aliases: []string{"Adrenaline"}},
			{Name: "Oxygen", Rank: 2, Type: "Respiratory"},
			{Name: "Levofloxacin", Rank: 3, Type: "Antibiotic"},
			{Name: "Propofol", Rank: 4, Type: "Anesthetic"},
			{Name: "Penicillin", Rank: 5, Type: "Antibiotic"},
			{Name: "IV Fluids", Rank: 6, Type: "Fluid", Aliases: []string{"Sodium Chloride"}},
			{Name: "Heparin", Rank: 7, Type: "Anticoagulant", Aliases: []string{"Warfarin"}},
			{Name: "Insulin", Rank: 8, Type: "Hormone"},
			{Name: "Morphine", Rank: 9, Type: "Analgesic"},
			{Name: "Vaccines", Rank: 10, Type: "Vaccine", Aliases: []string{"Vaccine"}},
		},
		SearchTerms: []string{
			"Epinephrine", "Oxygen", "Levofloxacin", "Propofol", "Penicillin",
			"Sodium Chloride", "Heparin", "Warfarin", "Insulin", "Morphine", "Vaccine",
		},
	}
}

// LoadCatalog lee el catálogo YAML en path. Si el archivo no existe devuelve DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("leer catálogo: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodifica y valida un catálogo YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsear catálogo: %w", err)
	}
	if len(c.Drugs) == 0 {
		return nil, fmt.Errorf("catálogo sin medicamentos")
	}
	seen := make(map[string]bool, len(c.Drugs))
	for i, d := range c.Drugs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("catálogo: medicamento %d sin nombre", i)
		}
		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("catálogo: medicamento duplicado %q", name)
		}
		seen[strings.ToLower(name)] = true
		if d.Rank <= 0 {
			c.Drugs[i].Rank = i + 1
		}
		c.Drugs[i].Name = name
	}
	if len(c.SearchTerms) == 0 {
		for _, d := range c.Drugs {
			c.SearchTerms = append(c.SearchTerms, d.Name)
		}
	}
	return &c, nil
}

// Names devuelve los nombres en orden de catálogo.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Drugs))
	for _, d := range c.Drugs {
		out = append(out, d.Name)
	}
	return out
}

// Rank devuelve el rango de criticidad del medicamento (0 si no está vigilado).
func (c *Catalog) Rank(name string) int {
	d, _ := c.Get(name)
	return d.Rank
}

// Get devuelve el medicamento vigilado por nombre exacto (sin distinguir mayúsculas).
func (c *Catalog) Get(name string) (MonitoredDrug, bool) {
	for _, d := range c.Drugs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return MonitoredDrug{}, false
}

// Contains indica si el medicamento está vigilado.
func (c *Catalog) Contains(name string) bool {
	return c.Rank(name) > 0
}
