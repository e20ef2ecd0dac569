package handler

import (
	"context"
	"errors"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/middleware"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/services"
)

// toAppError 把服务层错误映射为HTTP错误
func toAppError(err error) middleware.AppError {
	var (
		parseErr     *document.ParseError
		retrievalErr *services.RetrievalError
		buildErr     *services.BuildError
	)

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return middleware.NewNotFoundError("session not found or expired")
	case errors.As(err, &parseErr):
		return middleware.NewValidationError("workbook could not be parsed", parseErr.Error())
	case errors.As(err, &retrievalErr):
		switch retrievalErr.Code {
		case services.ErrCodeNoWorkbook:
			return middleware.NewConflictError("upload a workbook before asking questions")
		case services.ErrCodeEmptyIndex:
			return middleware.NewUnprocessableError("the uploaded workbook contains no searchable data")
		case services.ErrCodeEmptyQuery:
			return middleware.NewValidationError(retrievalErr.Message)
		case services.ErrCodeQueryEmbedding:
			return middleware.NewUpstreamError("failed to embed query", retrievalErr.Error())
		default:
			return middleware.NewInternalError("retrieval failed", retrievalErr.Error())
		}
	case errors.As(err, &buildErr):
		return middleware.NewConflictError("index build failed, upload the workbook again", buildErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return middleware.NewTimeoutError("request timed out")
	default:
		return middleware.NewInternalError("internal server error", err.Error())
	}
}
