// Command sentinel ejecuta el pipeline de abastecimiento de farmacia: servidor HTTP con
// corrida periódica y gate reactivo, o corridas sueltas desde la línea de comandos.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
