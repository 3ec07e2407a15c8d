package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

const (
	// IdempotencyKeyHeader — metadata с ключом идемпотентности расчётных RPC.
	IdempotencyKeyHeader = "idempotency-key"
	idempotencyTTL       = 24 * time.Hour
)

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на ключ в области method|caller.
// Повтор с тем же ключом и телом получает сохранённый ответ или ошибку, с другим телом AlreadyExists.
func withIdempotency[T any](
	s *CatalogService,
	ctx context.Context,
	method string,
	req any,
	newResp func() T,
	handler func(context.Context) (T, error),
) (T, error) {
	var zero T

	if s.idemRepo == nil {
		return handler(ctx)
	}

	caller := CallerKey(ctx)
	scope, err := domain.NewIdempotencyScope(method, caller, readMetadata(ctx, IdempotencyKeyHeader))
	switch {
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return zero, status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
	case err != nil:
		return zero, status.Errorf(codes.InvalidArgument, "idempotency-key must be at most %d characters without '|'", domain.MaxIdempotencyKeyLength)
	}
	idemKey := scope.StorageKey()

	reqHash, err := buildIdempotencyRequestHash(method, caller, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, idemKey, reqHash, s.now().Add(idempotencyTTL))
	if err != nil {
		return replayIdempotency(s, err, record, newResp)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.cacheIdempotencyFailure(ctx, idemKey, runErr)
		return resp, runErr
	}

	if cacheErr := s.cacheIdempotencySuccess(ctx, idemKey, resp); cacheErr != nil {
		s.logger.WithError(cacheErr).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
	}

	return resp, nil
}

func replayIdempotency[T any](
	s *CatalogService,
	createErr error,
	record domain.IdempotencyRecord,
	newResp func() T,
) (T, error) {
	var zero T

	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return zero, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				return zero, status.Error(codes.Internal, "idempotency cache is empty")
			}
			resp := newResp()
			if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
				s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
				return zero, status.Error(codes.Internal, "failed to decode cached idempotency response")
			}
			return resp, nil
		case domain.IdempotencyStatusProcessing:
			return zero, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			return zero, decodeIdempotencyFailure(record)
		default:
			return zero, status.Error(codes.Internal, "unknown idempotency record status")
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func (s *CatalogService) cacheIdempotencySuccess(ctx context.Context, key string, resp any) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(ctx, key, data, int(codes.OK))
}

func (s *CatalogService) cacheIdempotencyFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}

	if err := s.idemRepo.MarkFailed(ctx, key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCodeFromInt(int(payload.Code)); ok {
				if code == codes.OK {
					code = codes.Internal
				}
				if payload.Message == "" {
					payload.Message = fallback
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if code, ok := grpcCodeFromInt(record.ResponseCode); ok && code != codes.OK {
		return status.Error(code, fallback)
	}

	return status.Error(codes.Internal, fallback)
}

func grpcCodeFromInt(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // bounds checked above.
}

// buildIdempotencyRequestHash хеширует метод, вызывающего и JSON тела запроса.
// encoding/json пишет поля структур в фиксированном порядке, поэтому хеш детерминирован.
func buildIdempotencyRequestHash(method, caller string, req any) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(method)+len(caller)+2+len(data))
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, caller...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
