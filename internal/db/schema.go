package db

// SchemaSQL contains the graph schema initialization SQL.
//
// Entity record ids are deterministic slugs of (type, name_key), so the
// record-level UPSERT in QueryFindOrCreateEntity is the atomic
// find-or-create unit. The unique index on (type, name_key) is a backstop
// against any write path that bypasses the slug.
const SchemaSQL = `
    -- ==========================================================================
    -- ENTITY TABLE (canonical nodes: Organization, Person, Product, ...)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS type ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS canonical_name ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS name_key ON entity TYPE string;
    DEFINE FIELD IF NOT EXISTS aliases ON entity TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS alias_keys ON entity TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS confidence ON entity TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS mention_count ON entity TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS first_seen ON entity TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS last_updated ON entity TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS entity_identity ON entity FIELDS type, name_key UNIQUE;
    DEFINE INDEX IF NOT EXISTS entity_type ON entity FIELDS type;
    DEFINE INDEX IF NOT EXISTS entity_alias_keys ON entity FIELDS alias_keys;

    -- ==========================================================================
    -- NEWSLETTER TABLE (provenance nodes)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS newsletter SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS subject ON newsletter TYPE string;
    DEFINE FIELD IF NOT EXISTS sender ON newsletter TYPE string;
    DEFINE FIELD IF NOT EXISTS received_date ON newsletter TYPE datetime;
    DEFINE FIELD IF NOT EXISTS content_length ON newsletter TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS processed_at ON newsletter TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS newsletter_received ON newsletter FIELDS received_date;

    -- ==========================================================================
    -- FACT RELATION (directed subject -> object edges)
    -- ==========================================================================
    -- Directed and provenance-scoped: the same statement observed via a
    -- different newsletter is a distinct fact record, so the unique key
    -- includes the source newsletter and is NOT sorted.
    DEFINE TABLE IF NOT EXISTS fact TYPE RELATION IN entity OUT entity SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS predicate ON fact TYPE string;
    DEFINE FIELD IF NOT EXISTS temporal_context ON fact TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS confidence ON fact TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS source_newsletter ON fact TYPE string;
    DEFINE FIELD IF NOT EXISTS observed_at ON fact TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON fact VALUE <string>string::concat(<string>in, "|", predicate, "|", <string>out, "|", source_newsletter);
    DEFINE INDEX IF NOT EXISTS unique_fact ON fact FIELDS unique_key UNIQUE;

    -- ==========================================================================
    -- MENTIONED_IN RELATION (entity -> source newsletter)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS mentioned_in TYPE RELATION IN entity OUT newsletter SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS context ON mentioned_in TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS confidence ON mentioned_in TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS created ON mentioned_in TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS unique_key ON mentioned_in VALUE <string>string::concat(<string>in, "|", <string>out);
    DEFINE INDEX IF NOT EXISTS unique_mention ON mentioned_in FIELDS unique_key UNIQUE;
`
