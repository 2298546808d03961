package logger

const (
	Main      = "main"
	Config    = "config"
	Pool      = "pool"
	Store     = "store"
	Allocator = "allocator"
	Service   = "service"
	Gateway   = "gateway"
	API       = "nb.api"
	Metrics   = "exporter.prometheus"
)
