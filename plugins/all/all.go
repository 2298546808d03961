package all

import (
	_ "github.com/veesix-networks/cidrd/plugins/exporter/prometheus"
	_ "github.com/veesix-networks/cidrd/plugins/northbound/api"
)
