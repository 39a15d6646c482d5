//go:build windows

package transports

import (
    "gamenet/pkg/transport"
    "gamenet/pkg/transport/winpipe"
)

func newWinPipeTransport() (transport.Transport, error) { return winpipe.New(), nil }
