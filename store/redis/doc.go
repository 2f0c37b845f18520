// Package redis stores workflow drafts in Redis.
//
// A draft lives under <prefix>draft:<id> as JSON. The ids of one workflow's
// drafts are indexed in the set <prefix>workflow:<id>:drafts. With a TTL
// both keys expire, and List skips index entries whose draft is gone.
//
//	drafts := redis.NewRedisDraftStore(redis.RedisOptions{
//		Addr: "localhost:6379",
//		TTL:  72 * time.Hour,
//	})
//	defer drafts.Close()
package redis
