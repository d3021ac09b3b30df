// Package config loads offlinecache settings.
//
// Load starts from Default, overlays a YAML file, then applies
// OFFLINE_-prefixed environment variables and validates the result:
//
//	prefix: FoodFest-
//	version: version_02
//	origin: https://foodfest.example.com/
//	store:
//	  kind: sqlite
//	  path: /var/lib/offlinecache/cache.db
//
//	OFFLINE_VERSION=version_03 offlinecache serve --config offline.yaml
package config
