package router

import "go.uber.org/fx"

// Module provides the configured gin engine to the application graph.
var Module = fx.Provide(Setup)
