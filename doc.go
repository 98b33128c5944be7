// Package bikeshare aggregates bikeshare ridership with the neighbourhoods,
// stations and points of interest around it. It contains the shared pieces
// every stage of the pipeline uses; the stages themselves live in
// subpackages.
//
// A run moves through these stages:
//
// 1. Contracts
//
//    Every dataset has a Contract in a Registry built once at startup. A
//    Contract declares per column a semantic type, nullability, uniqueness
//    and an optional allowed-value Check, plus composite unique keys. Stages
//    validate what they are given and what they produce, and fail with a
//    *SchemaViolation naming the column and the first bad value.
//
// 2. Spatial join and enrichment (packages spatial and enrich)
//
//    Each point dataset (stations, institutions, transit stops, points of
//    interest, cultural hotspots) is tagged with the neighbourhood polygon
//    containing each point. Points outside every polygon, on a boundary, or
//    inside more than one polygon are dropped and counted.
//
// 3. Aggregation (package aggregate)
//
//    Enriched datasets are counted per neighbourhood and merged with
//    demographics into one row per neighbourhood. Trips are deduplicated,
//    split into date parts, joined to station metadata and grouped either by
//    station and hour or by neighbourhood and hour.
//
// 4. Validation (package validate)
//
//    Cross-dataset checks which report *ConsistencyWarning values without
//    stopping the run.
//
// 5. Persistence (packages store, csv, sqlite, pilosa)
//
//    Aggregates carry source_file and last_modified_timestamp columns. The
//    store replaces the rows of recomputed source files in a parquet file
//    with write-then-rename, and decides which sources need a refresh from
//    those columns alone. Aggregates can also be exported as chunked csv.gz
//    files, sqlite tables or a Pilosa index.
//
// Table is the in-memory tabular type passed between stages. Logger and
// Statter are how stages report what they dropped.
package bikeshare
