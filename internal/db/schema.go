package db

import (
	"regexp"
	"strings"
)

const (
	// DefaultTable is the bike path table used when none is configured.
	DefaultTable = "bike_path"

	// RunTable holds pipeline run history.
	RunTable = "pipeline_run"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// snapshotTable holds the latest GeoJSON export of table.
func snapshotTable(table string) string {
	return table + "_geojson"
}

// schemaTemplate uses {{table}} for the configurable bike path table.
const schemaTemplate = `
    -- ==========================================================================
    -- BIKE PATH TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS {{table}} SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON {{table}} TYPE string;
    DEFINE FIELD IF NOT EXISTS type ON {{table}} TYPE string;
    DEFINE FIELD IF NOT EXISTS surface ON {{table}} TYPE string;
    DEFINE FIELD IF NOT EXISTS length_km ON {{table}} TYPE number;
    DEFINE FIELD IF NOT EXISTS geometry ON {{table}} TYPE geometry<point | line | multiline | polygon>;
    DEFINE FIELD IF NOT EXISTS properties ON {{table}} TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS source_url ON {{table}} TYPE string;
    DEFINE FIELD IF NOT EXISTS extraction_timestamp ON {{table}} TYPE datetime;
    -- Storage metadata, not part of the exported record
    DEFINE FIELD IF NOT EXISTS path_id ON {{table}} VALUE <string>record::id(id);
    DEFINE FIELD IF NOT EXISTS updated_at ON {{table}} VALUE time::now();

    DEFINE INDEX IF NOT EXISTS {{table}}_path_id ON {{table}} FIELDS path_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS {{table}}_geometry ON {{table}} FIELDS geometry;
    DEFINE INDEX IF NOT EXISTS {{table}}_extraction ON {{table}} FIELDS extraction_timestamp;
    DEFINE INDEX IF NOT EXISTS {{table}}_type ON {{table}} FIELDS type;
    DEFINE INDEX IF NOT EXISTS {{table}}_surface ON {{table}} FIELDS surface;
    DEFINE ANALYZER IF NOT EXISTS {{table}}_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(french);
    DEFINE INDEX IF NOT EXISTS {{table}}_name_ft ON {{table}} FIELDS name FULLTEXT ANALYZER {{table}}_analyzer BM25;

    -- ==========================================================================
    -- GEOJSON SNAPSHOT (single record "latest")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS {{table}}_geojson SCHEMALESS;

    -- ==========================================================================
    -- PIPELINE RUN HISTORY
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS pipeline_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS status ON pipeline_run TYPE string ASSERT $value IN ["running", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS record_limit ON pipeline_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS source_url ON pipeline_run TYPE string;
    DEFINE FIELD IF NOT EXISTS result ON pipeline_run TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON pipeline_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON pipeline_run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON pipeline_run TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS pipeline_run_started ON pipeline_run FIELDS started_at;
`

// SchemaSQL returns the schema for the given bike path table.
// The name must already have passed validTableName.
func SchemaSQL(table string) string {
	return strings.ReplaceAll(schemaTemplate, "{{table}}", table)
}
