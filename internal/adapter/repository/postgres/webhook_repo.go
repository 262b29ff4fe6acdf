package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
)

// WebhookRepository implements usecase.WebhookRepository.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new WebhookRepository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

// GetEndpointByPath resolves an inbound path to its endpoint.
func (r *WebhookRepository) GetEndpointByPath(ctx context.Context, path string) (*domain.WebhookEndpoint, error) {
	var ep domain.WebhookEndpoint
	err := r.pool.QueryRow(ctx, `
		SELECT id, path, workflow_id, secret, is_active, created_at, updated_at
		FROM webhook_endpoints WHERE path = $1`, path,
	).Scan(&ep.ID, &ep.Path, &ep.WorkflowID, &ep.Secret, &ep.IsActive, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEndpointNotFound
		}
		return nil, err
	}
	return &ep, nil
}

// CreateEndpoint registers a webhook endpoint.
func (r *WebhookRepository) CreateEndpoint(ctx context.Context, ep *domain.WebhookEndpoint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_endpoints (id, path, workflow_id, secret, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ep.ID, ep.Path, ep.WorkflowID, ep.Secret, ep.IsActive,
		tsz(ep.CreatedAt), tsz(ep.UpdatedAt),
	)
	return err
}

// CreateRequest records one received webhook delivery.
func (r *WebhookRepository) CreateRequest(ctx context.Context, req *domain.WebhookRequest) error {
	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO webhook_requests (id, endpoint_id, method, headers, body, source_ip, received_at, execution_id, response_code, processing_micros)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.EndpointID, req.Method, headers, jsonOrNil(req.Body),
		req.SourceIP, tsz(req.ReceivedAt), req.ExecutionID, req.ResponseCode,
		req.ProcessingTime.Microseconds(),
	)
	return err
}

// UpdateRequest rewrites a delivery's outcome fields.
func (r *WebhookRepository) UpdateRequest(ctx context.Context, req *domain.WebhookRequest) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_requests
		SET execution_id = $2, response_code = $3, processing_micros = $4
		WHERE id = $1`,
		req.ID, req.ExecutionID, req.ResponseCode, req.ProcessingTime.Microseconds(),
	)
	return err
}
