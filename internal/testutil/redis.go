// Package testutil holds test doubles shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FakeRedis is an in-memory key/value store served through a go-redis hook,
// so clients built from it never dial. It understands PING, GET, SET, DEL and
// EXISTS.
type FakeRedis struct {
	mu    sync.Mutex
	data  map[string]string
	ttl   map[string]time.Duration
	fail  error
	calls int
}

// NewFakeRedis returns an empty store
func NewFakeRedis() *FakeRedis {
	return &FakeRedis{
		data: make(map[string]string),
		ttl:  make(map[string]time.Duration),
	}
}

// Client returns a client whose commands are answered by f
func (f *FakeRedis) Client() *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "fake-redis:6379"})
	client.AddHook(f)
	return client
}

// Fail makes every following command return err. A nil err heals the store.
func (f *FakeRedis) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// TTL returns the expiry recorded by the last SET of key
func (f *FakeRedis) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttl[key]
}

// Calls counts processed commands
func (f *FakeRedis) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeRedis) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (f *FakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		return f.process(cmd)
	}
}

func (f *FakeRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		var first error
		for _, cmd := range cmds {
			if err := f.process(cmd); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func (f *FakeRedis) process(cmd redis.Cmder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.fail != nil {
		cmd.SetErr(f.fail)
		return f.fail
	}

	args := cmd.Args()
	switch cmd.Name() {
	case "ping":
		cmd.(*redis.StatusCmd).SetVal("PONG")
	case "get":
		value, ok := f.data[str(args[1])]
		if !ok {
			cmd.SetErr(redis.Nil)
			return redis.Nil
		}
		cmd.(*redis.StringCmd).SetVal(value)
	case "set":
		key := str(args[1])
		f.data[key] = str(args[2])
		f.ttl[key] = expiry(args[3:])
		cmd.(*redis.StatusCmd).SetVal("OK")
	case "del", "exists":
		var n int64
		for _, arg := range args[1:] {
			key := str(arg)
			if _, ok := f.data[key]; ok {
				n++
				if cmd.Name() == "del" {
					delete(f.data, key)
					delete(f.ttl, key)
				}
			}
		}
		cmd.(*redis.IntCmd).SetVal(n)
	default:
		err := fmt.Errorf("fake redis: unsupported command %q", cmd.Name())
		cmd.SetErr(err)
		return err
	}
	return nil
}

func str(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}

// expiry decodes the EX/PX options of SET
func expiry(opts []interface{}) time.Duration {
	for i := 0; i+1 < len(opts); i++ {
		n, err := strconv.ParseInt(str(opts[i+1]), 10, 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(str(opts[i])) {
		case "ex":
			return time.Duration(n) * time.Second
		case "px":
			return time.Duration(n) * time.Millisecond
		}
	}
	return 0
}
