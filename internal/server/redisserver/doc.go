// Package redisserver serves the store over the Redis serialization
// protocol (RESP2) so that redis-cli and Redis client libraries can read
// and write keys.
//
// Supported commands: PING, ECHO, GET, SET, MGET, EXISTS, DBSIZE, INFO,
// COMMAND and QUIT. SET accepts only a key and a value; keys never expire
// and cannot be deleted.
package redisserver
