package session

import "github.com/Afolstee/authcore/permission"

// Session is the server-side refresh session record. RefreshHash holds the
// SHA-256 of the currently valid refresh secret; the raw secret never
// touches Redis. CreatedAt and ExpiresAt are Unix seconds.
type Session struct {
	SessionID string
	UserID    string
	Role      string

	Mask permission.Mask64

	Status      uint8
	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
