package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	valkey "github.com/valkey-io/valkey-go"

	"github.com/tipgate/tipgate/internal/prediction"
)

const (
	keyPrefix     = "prediction:"
	scanBatchSize = 100
)

// RedisTLSConfig controls transport security for the Redis backend.
type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

// RedisConfig holds the connection settings for the Redis backend.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      RedisTLSConfig
}

type redisStore struct {
	client valkey.Client
	now    func() time.Time
}

// NewRedis connects a Redis-protocol store. Whole-record SET under a
// single key gives per-match put serialization; the server's command
// ordering is the commit order.
func NewRedis(cfg RedisConfig) (Store, error) {
	if cfg.Address == "" {
		return nil, errors.New("store: redis address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("store: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("store: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("store: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	return &redisStore{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func recordKey(matchID int64) string {
	return keyPrefix + strconv.FormatInt(matchID, 10)
}

func (s *redisStore) Put(ctx context.Context, p prediction.Prediction) (prediction.Prediction, error) {
	stored := p.Clone()
	stored.LastUpdated = s.now()
	payload, err := json.Marshal(stored)
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("store: redis marshal: %w", err)
	}
	cmd := s.client.B().Set().Key(recordKey(stored.MatchID)).Value(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return prediction.Prediction{}, fmt.Errorf("store: redis set: %w: %w", prediction.ErrStoreUnavailable, err)
	}
	return stored, nil
}

func (s *redisStore) Get(ctx context.Context, matchID int64) (prediction.Prediction, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(recordKey(matchID)).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return prediction.Prediction{}, prediction.ErrNotFound
		}
		return prediction.Prediction{}, fmt.Errorf("store: redis get: %w: %w", prediction.ErrStoreUnavailable, err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return prediction.Prediction{}, fmt.Errorf("store: redis get bytes: %w: %w", prediction.ErrStoreUnavailable, err)
	}
	var record prediction.Prediction
	if err := json.Unmarshal(payload, &record); err != nil {
		return prediction.Prediction{}, fmt.Errorf("store: redis unmarshal: %w", err)
	}
	return record, nil
}

func (s *redisStore) Delete(ctx context.Context, matchID int64) error {
	resp := s.client.Do(ctx, s.client.B().Del().Key(recordKey(matchID)).Build())
	removed, err := resp.ToInt64()
	if err != nil {
		return fmt.Errorf("store: redis del: %w: %w", prediction.ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return prediction.ErrNotFound
	}
	return nil
}

func (s *redisStore) Scan(ctx context.Context, keep func(prediction.Prediction) bool) ([]prediction.Prediction, error) {
	var out []prediction.Prediction
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(keyPrefix + "*").Count(scanBatchSize).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("store: redis scan: %w: %w", prediction.ErrStoreUnavailable, err)
		}
		batch, err := s.fetch(ctx, entry.Elements, keep)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		cursor = entry.Cursor
		if cursor == 0 {
			return out, nil
		}
	}
}

// fetch resolves a batch of scanned keys. Keys deleted between the scan
// and the fetch are skipped rather than failing the whole pass.
func (s *redisStore) fetch(ctx context.Context, keys []string, keep func(prediction.Prediction) bool) ([]prediction.Prediction, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	resp := s.client.Do(ctx, s.client.B().Mget().Key(keys...).Build())
	values, err := resp.ToArray()
	if err != nil {
		return nil, fmt.Errorf("store: redis mget: %w: %w", prediction.ErrStoreUnavailable, err)
	}
	out := make([]prediction.Prediction, 0, len(values))
	for _, value := range values {
		if value.IsNil() {
			continue
		}
		payload, err := value.AsBytes()
		if err != nil {
			return nil, fmt.Errorf("store: redis mget bytes: %w: %w", prediction.ErrStoreUnavailable, err)
		}
		var record prediction.Prediction
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("store: redis unmarshal: %w", err)
		}
		if keep != nil && !keep(record) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *redisStore) Size(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(keyPrefix + "*").Count(scanBatchSize).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return 0, fmt.Errorf("store: redis scan: %w: %w", prediction.ErrStoreUnavailable, err)
		}
		total += int64(len(entry.Elements))
		cursor = entry.Cursor
		if cursor == 0 {
			return total, nil
		}
	}
}

func (s *redisStore) Close(context.Context) error {
	s.client.Close()
	return nil
}
