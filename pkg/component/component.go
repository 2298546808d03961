package component

import "context"

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Status is what a listening component reports about itself.
type Status struct {
	State         string `json:"state"`
	ListenAddress string `json:"listen_address"`
	Running       bool   `json:"running"`
}

func StatusOf(b *Base, addr string) Status {
	running := b.Running()
	state := "stopped"
	if running {
		state = "running"
	}
	return Status{
		State:         state,
		ListenAddress: addr,
		Running:       running,
	}
}
