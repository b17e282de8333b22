// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package cache provides bounded in-memory structures for deduplication.
package cache

import (
	"sync"
	"time"
)

// seenEntry is a node in the recency list.
type seenEntry struct {
	key       string
	expiresAt time.Time
	prev      *seenEntry
	next      *seenEntry
}

// DedupeCache remembers recently seen keys for a TTL, evicting the least
// recently seen key once capacity is reached. All operations are O(1) and
// safe for concurrent use.
//
// The forwarder uses it to drop events JetStream redelivers after a missed
// ack, keyed by event ID.
type DedupeCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*seenEntry
	// head.next is the most recently seen entry, tail.prev the least.
	head, tail *seenEntry

	duplicates int64
}

// NewDedupeCache creates a cache. Non-positive values select 10000 keys
// and a 10 minute TTL.
func NewDedupeCache(capacity int, ttl time.Duration) *DedupeCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &DedupeCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*seenEntry, capacity),
		head:     &seenEntry{},
		tail:     &seenEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Seen reports whether key was recorded within the TTL. Either way key is
// (re)recorded as most recently seen, so a key seen again keeps its slot.
func (c *DedupeCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.items[key]; ok {
		fresh := now.Before(e.expiresAt)
		e.expiresAt = now.Add(c.ttl)
		c.unlink(e)
		c.pushFront(e)
		if fresh {
			c.duplicates++
		}
		return fresh
	}

	e := &seenEntry{key: key, expiresAt: now.Add(c.ttl)}
	c.items[key] = e
	c.pushFront(e)
	for len(c.items) > c.capacity {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.items, oldest.key)
	}
	return false
}

// Forget removes key.
func (c *DedupeCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.unlink(e)
		delete(c.items, key)
	}
}

// Len returns the number of remembered keys, expired ones included until
// they are touched or evicted.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Duplicates returns how many Seen calls returned true.
func (c *DedupeCache) Duplicates() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplicates
}

func (c *DedupeCache) pushFront(e *seenEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *DedupeCache) unlink(e *seenEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}
