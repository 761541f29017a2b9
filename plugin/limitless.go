package plugin

import (
	"context"

	"github.com/auroralink/wrapper-core/driverconn"
	"github.com/auroralink/wrapper-core/hostinfo"
	"github.com/auroralink/wrapper-core/limitless"
)

// LimitlessPlugin adapts a limitless.RouterService into the chain's
// Connector seam. It ignores the host it's handed — as the first
// stage, it picks its own router endpoint — and rewrites downstream
// to whichever router it connects to.
type LimitlessPlugin struct {
	Service *limitless.RouterService
}

func (p *LimitlessPlugin) Connect(ctx context.Context, _ hostinfo.HostInfo) (driverconn.Conn, error) {
	conn, _, err := p.Service.EstablishConnection(ctx)
	return conn, err
}
