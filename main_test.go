package main

import "testing"

func TestRedisOptions(t *testing.T) {
	opts := redisOptions("redis://:pw@localhost:6380/2")
	if opts.Addr != "localhost:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected url options: %#v", opts)
	}
	opts = redisOptions("cache.example:6380,password=secret,ssl=True")
	if opts.Addr != "cache.example:6380" || opts.Password != "secret" || opts.TLSConfig == nil {
		t.Fatalf("unexpected connection string options: %#v", opts)
	}
}
