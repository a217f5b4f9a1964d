// Package platform defines the boundary between the service layer and the
// messaging platform. A Client represents one authenticated connection bound
// to a session blob on disk; a Factory constructs unconnected clients.
//
// Implementations translate transport-specific failures into the sentinel
// errors below so the service layer never inspects wire-level error codes.
package platform

import (
	"context"
	"errors"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
)

var (
	// ErrEntityNotFound means a peer (user, group, channel) could not be
	// resolved or is not accessible to the account.
	ErrEntityNotFound = errors.New("cannot find any entity")

	// ErrPasswordRequired is returned by SignIn when the account has two-step
	// verification enabled.
	ErrPasswordRequired = errors.New("two-step verification password required")

	// ErrInvalidCode is returned by SignIn for a wrong verification code.
	ErrInvalidCode = errors.New("verification code is invalid")

	// ErrCodeExpired is returned by SignIn when the code or its hash expired.
	ErrCodeExpired = errors.New("verification code has expired")

	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("client is not connected")
)

// Client is one connection to the messaging platform.
//
// Connect/Disconnect manage the transport. IsConnected is a health check and
// must not block longer than ctx allows. GetMessage returns (nil, nil) when
// the message does not exist.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	IsAuthorized(ctx context.Context) (bool, error)

	SendCode(ctx context.Context, phone string) (phoneCodeHash string, err error)
	SignIn(ctx context.Context, phone, code, phoneCodeHash string) (*domain.Identity, error)
	Self(ctx context.Context) (*domain.Identity, error)
	LogOut(ctx context.Context) error

	GetMessage(ctx context.Context, peer domain.PeerRef, id int) (*domain.Message, error)
	GetDialogs(ctx context.Context, limit int) ([]domain.Dialog, error)
}

// Factory builds an unconnected Client bound to a session blob path.
type Factory func(sessionPath string, creds domain.Credentials) (Client, error)
