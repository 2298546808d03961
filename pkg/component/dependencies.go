package component

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/cidrd/internal/service"
	"github.com/veesix-networks/cidrd/pkg/config"
	"github.com/veesix-networks/cidrd/pkg/poolstore"
)

type Dependencies struct {
	Config   *config.Config
	Service  *service.Service
	Store    *poolstore.Store
	Registry *prometheus.Registry
}
