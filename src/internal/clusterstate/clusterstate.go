// Package clusterstate holds the chain of schema migrations for the dedup database.
package clusterstate

import (
	"github.com/softwareheritage/swh-dedup/src/internal/dedupdb"
	"github.com/softwareheritage/swh-dedup/src/internal/migrations"
)

// DO NOT MODIFY THESE STATES
// THEY HAVE ALREADY BEEN APPLIED TO EXISTING DATABASES
var (
	state_0 migrations.State = migrations.InitialState().
		Apply("dedup schema v0", dedupdb.SetupSchemaV0)

	state_1 migrations.State = state_0.
		Apply("chunk index v1", dedupdb.SetupChunkIndexV1)
)

// DesiredClusterState is the schema this version of the code expects.
var DesiredClusterState migrations.State = state_1
