package prometheus

import (
	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/logger"
)

const Namespace = logger.Metrics

func init() {
	component.Register(Namespace, New)
}
