package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix は他用途のキーと衝突しないためのプレフィックス。
const keyPrefix = "postline:page:"

// Redis はRedisを背後に持つTTLキャッシュ。複数プロセス構成で使う。
type Redis struct {
	client *redis.Client
}

// NewRedis はRedisキャッシュを生成する。
func NewRedis(addr string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Get はキーに対応する値を返す。キーが存在しない場合はok=false。
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}
	return value, true, nil
}

// Set は値をTTL付きで保存する。期限管理はRedisに任せる。
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// Clear はプレフィックス配下の全エントリをSCANで辿って破棄する。
// FLUSHDBはDBを共有する他システムのキーまで消すので使わない。
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("キャッシュの削除に失敗しました: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("キャッシュの走査に失敗しました: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}

// compile-time interface check
var _ Store = (*Redis)(nil)
