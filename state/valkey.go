package state

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

type ValkeyManager struct {
	client valkey.Client
}

func NewValkeyManager(client valkey.Client) *ValkeyManager {
	return &ValkeyManager{client: client}
}

func (r *ValkeyManager) SaveCache(
	ctx context.Context, key string, value []byte, duration time.Duration,
) error {
	return r.client.Do(
		ctx, r.client.B().Set().
			Key(key).
			Value(valkey.BinaryString(value)).
			Ex(duration).
			Build(),
	).Error()
}

func (r *ValkeyManager) LoadCache(ctx context.Context, key string) ([]byte, error) {
	valkeyResponse := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if err := valkeyResponse.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return valkeyResponse.AsBytes()
}