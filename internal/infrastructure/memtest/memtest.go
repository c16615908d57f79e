// Package memtest implementa los repositorios del dominio en memoria para los tests
// de aplicación y de HTTP. No se conecta en cmd/.
package memtest

import "github.com/google/uuid"

func newID() string { return uuid.NewString() }
