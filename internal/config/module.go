package config

import "go.uber.org/fx"

// Module wires configuration loading into the fx graph.
var Module = fx.Provide(Load)
