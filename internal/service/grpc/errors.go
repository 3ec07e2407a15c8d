package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

// grpcCode сводит доменную ошибку к коду gRPC.
func grpcCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, settlement.ErrShuttingDown):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, domain.ErrTransferFailed):
		return codes.Aborted
	case errors.Is(err, domain.ErrCallerRequired):
		return codes.Unauthenticated
	case domain.IsValidation(err):
		return codes.InvalidArgument
	case domain.IsNotFound(err):
		return codes.NotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return codes.PermissionDenied
	case domain.IsAlreadyExists(err):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrPriceMismatch),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInsufficientEscrow),
		errors.Is(err, domain.ErrAlreadyOwner),
		errors.Is(err, domain.ErrInsufficientFunds):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrRegistryExhausted):
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// mapDomainError превращает ошибку сервиса в status; внутренние детали наружу не уходят.
func (s *CatalogService) mapDomainError(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := grpcCode(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      code.String(),
	})
	if caller, ok := CallerFromContext(ctx); ok {
		entry = entry.WithField("caller", caller)
	}

	if code == codes.Internal {
		entry.Error("операция завершилась внутренней ошибкой")
		return status.Errorf(codes.Internal, "%s failed", operation)
	}
	entry.Debug("operation rejected")
	return status.Error(code, err.Error())
}
