package main

import (
	"github.com/frequency-chain/frequency-ops/api"
	"github.com/frequency-chain/frequency-ops/database"
	"github.com/frequency-chain/frequency-ops/frequency"
	"github.com/frequency-chain/frequency-ops/indexer"
	"github.com/frequency-chain/frequency-ops/output"
	"github.com/frequency-chain/frequency-ops/upgrader"
)

var (
	_ indexer.MessageSource = &frequency.MessagesClient{}
	_ indexer.Sink          = &output.MessageFile{}
	_ indexer.Sink          = &database.Database{}
	_ indexer.Checkpoint    = &database.Database{}
	_ indexer.Checkpoint    = &output.FileCheckpoint{}
	_ upgrader.Chain        = &frequency.ChainClient{}
	_ upgrader.BatchStore   = &database.Database{}
	_ api.Store             = &database.Database{}
)
