// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package cache

import (
	"sync"
	"time"
)

// InMemory is a Cache kept in process memory. It backs tests and the
// single-binary development mode; expiry is enforced lazily on read.
type InMemory struct {
	mu      sync.Mutex
	values  map[string][]byte
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	expires map[string]time.Time
}

// NewInMemory returns an empty in-memory cache.
func NewInMemory() *InMemory {
	return &InMemory{
		values:  make(map[string][]byte),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		expires: make(map[string]time.Time),
	}
}

func (c *InMemory) expired(key string) bool {
	deadline, ok := c.expires[key]
	if !ok || time.Now().Before(deadline) {
		return false
	}
	delete(c.values, key)
	delete(c.hashes, key)
	delete(c.sets, key)
	delete(c.expires, key)
	return true
}

func (c *InMemory) setTTL(key string, ttl time.Duration) {
	if ttl > 0 {
		c.expires[key] = time.Now().Add(ttl)
	}
}

// Set stores a value under key.
func (c *InMemory) Set(key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	c.values[key] = buf
	c.setTTL(key, ttl)
	return nil
}

// Get returns the value stored under key.
func (c *InMemory) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		return nil, false, nil
	}
	value, ok := c.values[key]
	return value, ok, nil
}

// HSet merges fields into the hash stored under key.
func (c *InMemory) HSet(key string, fields map[string]string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)
	hash, ok := c.hashes[key]
	if !ok {
		hash = make(map[string]string)
		c.hashes[key] = hash
	}
	for k, v := range fields {
		hash[k] = v
	}
	c.setTTL(key, ttl)
	return nil
}

// HGetAll returns a copy of the hash stored under key.
func (c *InMemory) HGetAll(key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	if c.expired(key) {
		return out, nil
	}
	for k, v := range c.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// SAdd adds members to the set stored under key.
func (c *InMemory) SAdd(key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired(key)
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem removes members from the set stored under key.
func (c *InMemory) SRem(key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range members {
		delete(c.sets[key], m)
	}
	return nil
}

// SMembers returns the members of the set stored under key.
func (c *InMemory) SMembers(key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		return nil, nil
	}
	members := make([]string, 0, len(c.sets[key]))
	for m := range c.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

// Del removes keys.
func (c *InMemory) Del(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.values, key)
		delete(c.hashes, key)
		delete(c.sets, key)
		delete(c.expires, key)
	}
	return nil
}

// Close is a no-op.
func (c *InMemory) Close() error { return nil }
