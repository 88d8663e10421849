package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/splitsquad/backend/internal/auth"
	"github.com/splitsquad/backend/internal/calculator"
	"github.com/splitsquad/backend/internal/middleware"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/internal/storage"
	"github.com/splitsquad/backend/internal/validation"
)

// identity is the authenticated caller.
type identity struct {
	userID string
	email  string
	name   string
}

// caller reads the identity injected by middleware.RequireAuth.
func caller(ctx context.Context) (identity, error) {
	who := identity{
		userID: middleware.GetUserID(ctx),
		email:  middleware.GetEmail(ctx),
		name:   middleware.GetName(ctx),
	}
	if who.userID == "" || who.email == "" {
		return identity{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return who, nil
}

func (i identity) ref() models.ParticipantRef { return models.MemberRef(i.userID) }

// displayName falls back to the local part of the email.
func (i identity) displayName() string {
	if name := strings.TrimSpace(i.name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(i.email, "@")
	return local
}

// codeOf maps domain errors to Connect codes.
func codeOf(err error) connect.Code {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr.Code()
	case errors.Is(err, validation.ErrValidation),
		errors.Is(err, roster.ErrUnknownParticipant),
		errors.Is(err, roster.ErrInvalidEmail):
		return connect.CodeInvalidArgument
	case errors.Is(err, roster.ErrDuplicateMember):
		return connect.CodeAlreadyExists
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, errNotMember),
		errors.Is(err, auth.ErrInviteInvalid),
		errors.Is(err, auth.ErrInviteExpired):
		return connect.CodePermissionDenied
	case errors.Is(err, errLastMember):
		return connect.CodeFailedPrecondition
	case errors.Is(err, storage.ErrConcurrencyConflict):
		return connect.CodeAborted
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, calculator.ErrInternalConsistency):
		return connect.CodeInternal
	default:
		return connect.CodeInternal
	}
}

// fail logs a failed operation and converts err for the wire.
func fail(op string, err error, attrs ...any) error {
	code := codeOf(err)
	attrs = append(attrs, "code", code, "error", err)
	if code == connect.CodeInternal {
		slog.Error(op+" failed", attrs...)
	} else {
		slog.Warn(op+" failed", attrs...)
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(code, err)
}

func invalidArgument(field, reason string) error {
	return &validation.ValidationError{Field: field, Reason: reason}
}
