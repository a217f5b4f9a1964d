package gotd

import (
	"fmt"

	"github.com/gotd/td/tgerr"

	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// RPC error types that mean "no such peer, or not visible to this account".
var entityErrors = []string{
	"CHANNEL_INVALID",
	"CHANNEL_PRIVATE",
	"CHAT_ID_INVALID",
	"PEER_ID_INVALID",
	"USERNAME_INVALID",
	"USERNAME_NOT_OCCUPIED",
}

// mapError translates RPC errors into platform sentinels. Unknown errors are
// returned unchanged so their text reaches the caller.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case tgerr.Is(err, entityErrors...):
		return fmt.Errorf("%w: %v", platform.ErrEntityNotFound, err)
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %v", platform.ErrInvalidCode, err)
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return fmt.Errorf("%w: %v", platform.ErrCodeExpired, err)
	case tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return fmt.Errorf("%w: %v", platform.ErrPasswordRequired, err)
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("flood wait %s: %w", d, err)
	}
	return err
}
