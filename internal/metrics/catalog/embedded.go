// Package catalog bakes the KPI catalog YAML into the binary so the metric
// definitions are immutable at runtime and travel with the executable.
package catalog

import (
	_ "embed"
)

// KPICatalog holds the raw bytes of kpi_catalog.yaml, populated at compile
// time. Pass it directly to yaml.Unmarshal.
//
//go:embed kpi_catalog.yaml
var KPICatalog []byte
