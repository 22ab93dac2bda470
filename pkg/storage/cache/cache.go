// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package cache implements the key/value archive contract shared by the
// processor, the analyzer and the alert manager, backed by redis.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DataDog/logpipe/pkg/config"
)

// Cache is the storage contract used for raw payloads, analysis results and
// alerts. Implementations must be safe for concurrent use.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, bool, error)
	HSet(key string, fields map[string]string, ttl time.Duration) error
	HGetAll(key string) (map[string]string, error)
	SAdd(key string, members ...string) error
	SRem(key string, members ...string) error
	SMembers(key string) ([]string, error)
	Del(keys ...string) error
	Close() error
}

// redisCache implements Cache on a redis client, applying a per-call
// timeout.
type redisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache returns a Cache backed by the redis server described in cfg.
func NewRedisCache(cfg config.CacheConfig) Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &redisCache{
		client:  client,
		timeout: cfg.Timeout,
	}
}

func (c *redisCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *redisCache) Set(key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Get(key string) ([]byte, bool, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	value, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *redisCache) HSet(key string, fields map[string]string, ttl time.Duration) error {
	ctx, cancel := c.ctx()
	defer cancel()
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := c.client.HSet(ctx, key, args...).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return c.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

func (c *redisCache) HGetAll(key string) (map[string]string, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.client.HGetAll(ctx, key).Result()
}

func (c *redisCache) SAdd(key string, members ...string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.client.SAdd(ctx, key, args...).Err()
}

func (c *redisCache) SRem(key string, members ...string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.client.SRem(ctx, key, args...).Err()
}

func (c *redisCache) SMembers(key string) ([]string, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.client.SMembers(ctx, key).Result()
}

func (c *redisCache) Del(keys ...string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	return c.client.Del(ctx, keys...).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
