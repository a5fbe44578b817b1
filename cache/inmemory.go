package cache

import (
	"context"
	"sync"
	"time"
)

type inMemoryCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cache     map[string]*value
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	now       func() time.Time
}

var _ Cache = (*inMemoryCache)(nil)

func (c *inMemoryCache) Get(_ context.Context, key string) (bool, any, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	val, ok := c.cache[key]
	if !ok {
		return false, nil, nil
	}
	if !val.expires.After(c.now()) {
		delete(c.cache, key)
		return false, nil, nil
	}
	val.hits++
	return true, val.object, nil
}

func (c *inMemoryCache) Hits(_ context.Context, key string) (bool, int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if v, ok := c.cache[key]; ok {
		return true, v.hits
	}
	return false, 0
}

func (c *inMemoryCache) Set(_ context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	c.mutex.Lock()
	c.cache[key] = &value{object: val, expires: c.now().Add(expires)}
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Expire(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	_, ok := c.cache[key]
	if ok {
		delete(c.cache, key)
	}
	c.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	clear(c.cache)
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Len(_ context.Context) (int, error) {
	now := c.now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var n int
	for _, val := range c.cache {
		if val.expires.After(now) {
			n++
		}
	}
	return n, nil
}

func (c *inMemoryCache) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *inMemoryCache) sweep() {
	now := c.now()
	c.mutex.Lock()
	for key, val := range c.cache {
		if !val.expires.After(now) {
			delete(c.cache, key)
		}
	}
	c.mutex.Unlock()
}

func (c *inMemoryCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// NewInMemory returns a new in-memory Cache implementation. The expiry
// goroutine stops when parent is cancelled or Close is called.
func NewInMemory(parent context.Context, opts ...Option) Cache {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &inMemoryCache{
		ctx:    ctx,
		cancel: cancel,
		cache:  make(map[string]*value),
		cfg:    cfg,
		now:    time.Now,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}
