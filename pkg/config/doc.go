// Package config loads application configuration from SHOTPIPE_* environment
// variables with defaults for every setting.
//
// # Server
//
//	SHOTPIPE_HOST="0.0.0.0"
//	SHOTPIPE_PORT="8080"
//	SHOTPIPE_READ_TIMEOUT="30s"
//	SHOTPIPE_WRITE_TIMEOUT="30s"
//
// # Storage
//
//	SHOTPIPE_STORAGE_TYPE="filesystem"  # filesystem, sqlite, postgres
//	SHOTPIPE_FILESYSTEM_ROOT="/var/shotpipe/registry"
//	SHOTPIPE_SQLITE_PATH="/var/shotpipe/registry.db"
//	SHOTPIPE_POSTGRES_URL="postgres://localhost/shotpipe"
//	SHOTPIPE_CACHE_ENABLED="false"
//	SHOTPIPE_REDIS_URL="redis://localhost:6379"
//	SHOTPIPE_ARCHIVE_ENABLED="false"
//	SHOTPIPE_S3_BUCKET=""
//	SHOTPIPE_S3_REGION="us-east-1"
//	SHOTPIPE_RETENTION_SCHEDULE=""      # cron expression, empty disables the sweep
//	SHOTPIPE_RETENTION_KEEP="3"
//
// # Pipeline
//
//	SHOTPIPE_PLUGIN_DIRS=""           # comma-separated, defaults applied when empty
//	SHOTPIPE_WORKERS="4"
//	SHOTPIPE_DROP_DIRS=""             # comma-separated directories watched for incoming files
//	SHOTPIPE_SETTLE_TIME="2s"
//
// # Observability
//
//	SHOTPIPE_LOG_LEVEL="info"
//	SHOTPIPE_OTEL_ENABLED="false"
//	SHOTPIPE_OTEL_ENDPOINT="localhost:4317"
package config
