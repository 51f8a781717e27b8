package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var _ Identity = (*IdentityClient)(nil)

// IdentityClient calls the member service for delivery identity snapshots.
type IdentityClient struct {
	base string
	http *http.Client
	lg   *zap.Logger

	delivery *gobreaker.CircuitBreaker[DeliveryIdentity]
}

// NewIdentityClient returns an IdentityClient for the member service at base.
func NewIdentityClient(base string, client *http.Client, cfg BreakerConfig, lg *zap.Logger) *IdentityClient {
	return &IdentityClient{
		base:     base,
		http:     client,
		lg:       lg,
		delivery: newBreaker[DeliveryIdentity]("identity.delivery", cfg, lg),
	}
}

// DeliveryIdentity returns the member's delivery name and address.
func (c *IdentityClient) DeliveryIdentity(ctx context.Context, memberID int64) Result[DeliveryIdentity] {
	return guard(c.delivery, c.lg, func() (DeliveryIdentity, error) {
		var body DeliveryIdentity
		u := buildURL(c.base, fmt.Sprintf("/members/%d/delivery", memberID), nil)
		if err := getJSON(ctx, c.http, u, &body); err != nil {
			return DeliveryIdentity{}, err
		}
		return body, nil
	})
}
