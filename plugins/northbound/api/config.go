package api

import (
	"github.com/veesix-networks/cidrd/pkg/component"
	"github.com/veesix-networks/cidrd/pkg/logger"
)

const Namespace = logger.API

func init() {
	component.Register(Namespace, NewComponent)
}
