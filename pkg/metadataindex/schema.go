package metadataindex

// Schema is applied with CREATE TABLE/INDEX IF NOT EXISTS at connect time,
// following the donor's no-migration-tool idiom. Table names mirror the
// ones already used by the upstream Rust implementation this registry
// descends from (repository_blobs, upload_sessions).
const Schema = `
CREATE TABLE IF NOT EXISTS repositories (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	namespace  TEXT NOT NULL DEFAULT '',
	is_public  BOOLEAN NOT NULL DEFAULT true,
	owner_ref  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blobs (
	id               BIGSERIAL PRIMARY KEY,
	digest           TEXT NOT NULL UNIQUE,
	size             BIGINT NOT NULL,
	media_type       TEXT NOT NULL DEFAULT '',
	storage_locator  TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS repository_blobs (
	repository_id BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	blob_id        BIGINT NOT NULL REFERENCES blobs(id) ON DELETE RESTRICT,
	PRIMARY KEY (repository_id, blob_id)
);

CREATE TABLE IF NOT EXISTS manifests (
	id            BIGSERIAL PRIMARY KEY,
	repository_id BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	digest        TEXT NOT NULL,
	media_type    TEXT NOT NULL DEFAULT '',
	content       BYTEA NOT NULL,
	size          BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (repository_id, digest)
);

CREATE TABLE IF NOT EXISTS tags (
	repository_id BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	manifest_id   BIGINT NOT NULL REFERENCES manifests(id) ON DELETE CASCADE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (repository_id, name)
);

CREATE TABLE IF NOT EXISTS upload_sessions (
	id              TEXT PRIMARY KEY,
	repository_id   BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	uploaded_size   BIGINT NOT NULL DEFAULT 0,
	expected_size   BIGINT NOT NULL DEFAULT -1,
	scratch_locator TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_sessions_expires_at ON upload_sessions (expires_at);
CREATE INDEX IF NOT EXISTS idx_tags_manifest_id ON tags (manifest_id);
`
