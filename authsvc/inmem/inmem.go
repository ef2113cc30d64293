package inmem

import (
	"errors"
	"sync"

	consul "github.com/hashicorp/consul/api"
)

// KeyPrefix namespaces access token entries in the consul KV store.
const KeyPrefix = "todokit/tokens/"

type Client interface {
	Get(key string) error
	Put(key string, value []byte) error
	Delete(key string) error
}

type client struct {
	consul *consul.Client
}

func NewClient(c *consul.Client) Client {
	return &client{c}
}

func (c *client) Get(key string) error {
	kv, _, err := c.consul.KV().Get(KeyPrefix+key, nil)
	if err != nil {
		return err
	}

	if kv == nil {
		return ErrKeyNotFound
	}

	return nil
}

func (c *client) Put(key string, value []byte) error {
	p := &consul.KVPair{Key: KeyPrefix + key, Value: value}
	_, err := c.consul.KV().Put(p, nil)

	return err
}

func (c *client) Delete(key string) error {
	_, err := c.consul.KV().Delete(KeyPrefix+key, nil)

	return err
}

type memoryClient struct {
	mtx sync.RWMutex
	kv  map[string][]byte
}

// NewMemoryClient keeps entries in process memory. It serves single-process
// deployments and tests.
func NewMemoryClient() Client {
	return &memoryClient{kv: make(map[string][]byte)}
}

func (c *memoryClient) Get(key string) error {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if _, ok := c.kv[key]; !ok {
		return ErrKeyNotFound
	}
	return nil
}

func (c *memoryClient) Put(key string, value []byte) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.kv[key] = value
	return nil
}

func (c *memoryClient) Delete(key string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.kv, key)
	return nil
}

var ErrKeyNotFound = errors.New("key not found")
