package dataset

import (
	_ "embed"

	"github.com/sensorkit/ide/ebml"
)

// SchemaName is the registry identifier of the built-in recording schema.
const SchemaName = "ide"

//go:embed schema.yaml
var schemaYAML []byte

// DefaultSchema returns the built-in recording schema, registering it
// process-wide on first use.
func DefaultSchema() (*ebml.Schema, error) {
	return ebml.Register(SchemaName, schemaYAML)
}
