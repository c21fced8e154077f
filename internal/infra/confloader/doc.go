// Package confloader loads configuration with koanf.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. defaults (a map, usually built from the config struct)
//  2. a YAML file
//  3. environment variables
//
// Environment variable names drop the prefix and use a double underscore
// between path segments, so single underscores stay inside key names:
//
//	KVMESH_STORAGE__EXPECTED_KEYS=500000  ->  storage.expected_keys
//	KVMESH_SERVER__HTTP__ADDR=:8000       ->  server.http.addr
//
// Watcher reports writes to the config file so the server can reload the
// settings that are safe to change at runtime.
package confloader
