//go:build !linux

package capture

import (
	"fmt"

	"firestige.xyz/dpsmeter/internal/core"
)

func newAFPacketSource(opts Options, out *sender) (Source, error) {
	out.close()
	return nil, fmt.Errorf("%w: afpacket requires linux", core.ErrUnsupportedBackend)
}
