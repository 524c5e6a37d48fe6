// conn_windows.go connects to Discord over \\.\pipe\discord-ipc-N named pipes.

//go:build windows

package discord

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord dials each pipe slot and returns the first that accepts.
func connectToDiscord(ctx context.Context) (net.Conn, error) {
	for i := range maxIPCSlots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := winio.DialPipeContext(ctx, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
