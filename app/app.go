package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/dgraph-io/badger/v4"

	"github.com/shipcheck/shipcheck/repository"
)

// Application implements the ABCI interface for the inspection audit
// ledger. Each transaction is a terminal inspection summary; the ledger
// gives inspections an append-only record outside the relational store.
type Application struct {
	badgerDB     *badger.DB
	onGoingBlock *badger.Txn
	nodeID       string
	mu           sync.Mutex
	logger       cmtlog.Logger
}

// NewABCIApplication creates the audit ledger application
func NewABCIApplication(badgerDB *badger.DB, logger cmtlog.Logger) *Application {
	return &Application{
		badgerDB: badgerDB,
		logger:   logger,
	}
}

func (app *Application) SetNodeID(id string) {
	app.nodeID = id
}

// Info implements the ABCI Info method
func (app *Application) Info(_ context.Context, info *abcitypes.InfoRequest) (*abcitypes.InfoResponse, error) {
	lastBlockHeight := int64(0)
	var lastBlockAppHash []byte

	err := app.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("last_block_height"))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		err = item.Value(func(val []byte) error {
			lastBlockHeight = bytesToInt64(val)
			return nil
		})
		if err != nil {
			return err
		}

		item, err = txn.Get([]byte("last_block_app_hash"))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err == nil {
			err = item.Value(func(val []byte) error {
				lastBlockAppHash = val
				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		log.Printf("Error getting last block info: %v", err)
	}

	return &abcitypes.InfoResponse{
		LastBlockHeight:  lastBlockHeight,
		LastBlockAppHash: lastBlockAppHash,
	}, nil
}

// Query implements the ABCI Query method. Queries of the form
// "inspection:<id>" resolve audit records; anything else is a raw
// key-value lookup.
func (app *Application) Query(_ context.Context, req *abcitypes.QueryRequest) (*abcitypes.QueryResponse, error) {
	if len(req.Data) == 0 {
		return &abcitypes.QueryResponse{
			Code: 1,
			Log:  "Empty query data",
		}, nil
	}

	if data := string(req.Data); strings.HasPrefix(data, "inspection:") {
		inspectionID := strings.TrimPrefix(data, "inspection:")
		return app.queryInspectionRecord(inspectionID)
	}

	resp := abcitypes.QueryResponse{Key: req.Data}

	dbErr := app.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(req.Data)
		if err != nil {
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			resp.Log = "key doesn't exist"
			return nil
		}

		return item.Value(func(val []byte) error {
			resp.Log = "exists"
			resp.Value = val
			return nil
		})
	})

	if dbErr != nil {
		log.Printf("Error reading database: %v", dbErr)
		return &abcitypes.QueryResponse{
			Code: 2,
			Log:  fmt.Sprintf("Database error: %v", dbErr),
		}, nil
	}

	return &resp, nil
}

// queryInspectionRecord returns the anchored audit record for an
// inspection
func (app *Application) queryInspectionRecord(inspectionID string) (*abcitypes.QueryResponse, error) {
	var resp abcitypes.QueryResponse

	err := app.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("audit:" + inspectionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				resp.Log = "Inspection not anchored"
				resp.Code = 1
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			resp.Value = append([]byte{}, val...)
			resp.Log = "found"
			resp.Code = 0
			return nil
		})
	})

	if err != nil {
		resp.Code = 2
		resp.Log = fmt.Sprintf("Database error: %v", err)
	}

	return &resp, nil
}

// QueryAuditRecord is the in-process form of the inspection query, used
// by the HTTP audit endpoint. Returns nil bytes when no record exists.
func (app *Application) QueryAuditRecord(inspectionID string) ([]byte, error) {
	var record []byte
	err := app.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("audit:" + inspectionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			record = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CheckTx implements the ABCI CheckTx method
func (app *Application) CheckTx(_ context.Context, check *abcitypes.CheckTxRequest) (*abcitypes.CheckTxResponse, error) {
	var commit repository.AuditCommit
	err := json.Unmarshal(check.Tx, &commit)
	if err != nil {
		return &abcitypes.CheckTxResponse{Code: 1},
			fmt.Errorf("malformed audit commit transaction: %s", err.Error())
	}

	if commit.InspectionID == "" || commit.ShippingInstructionID == "" || commit.Status == "" {
		return &abcitypes.CheckTxResponse{Code: 1},
			fmt.Errorf("missing required fields in audit commit")
	}

	return &abcitypes.CheckTxResponse{Code: 0}, nil
}

// InitChain implements the ABCI InitChain method
func (app *Application) InitChain(_ context.Context, chain *abcitypes.InitChainRequest) (*abcitypes.InitChainResponse, error) {
	return &abcitypes.InitChainResponse{}, nil
}

// PrepareProposal implements the ABCI PrepareProposal method
func (app *Application) PrepareProposal(_ context.Context, proposal *abcitypes.PrepareProposalRequest) (*abcitypes.PrepareProposalResponse, error) {
	return &abcitypes.PrepareProposalResponse{Txs: proposal.Txs}, nil
}

// ProcessProposal implements the ABCI ProcessProposal method
func (app *Application) ProcessProposal(_ context.Context, proposal *abcitypes.ProcessProposalRequest) (*abcitypes.ProcessProposalResponse, error) {
	app.logger.Info("Processing proposal with transactions", "count", len(proposal.Txs))

	for i, txBytes := range proposal.Txs {
		var commit repository.AuditCommit
		err := json.Unmarshal(txBytes, &commit)
		if err != nil {
			app.logger.Error("Invalid transaction format", "index", i, "error", err)
			return &abcitypes.ProcessProposalResponse{
				Status: abcitypes.PROCESS_PROPOSAL_STATUS_REJECT,
			}, fmt.Errorf("invalid transaction at index %d: %v", i, err)
		}

		if commit.InspectionID == "" || commit.Status == "" {
			app.logger.Error("Invalid audit commit", "index", i, "inspection_id", commit.InspectionID)
			return &abcitypes.ProcessProposalResponse{
				Status: abcitypes.PROCESS_PROPOSAL_STATUS_REJECT,
			}, fmt.Errorf("invalid audit commit at index %d", i)
		}

		app.logger.Info("Validating audit commit", "index", i, "inspection_id", commit.InspectionID, "status", commit.Status)
	}

	return &abcitypes.ProcessProposalResponse{
		Status: abcitypes.PROCESS_PROPOSAL_STATUS_ACCEPT,
	}, nil
}

// FinalizeBlock implements the ABCI FinalizeBlock method
func (app *Application) FinalizeBlock(_ context.Context, req *abcitypes.FinalizeBlockRequest) (*abcitypes.FinalizeBlockResponse, error) {
	var txResults = make([]*abcitypes.ExecTxResult, len(req.Txs))

	app.mu.Lock()
	defer app.mu.Unlock()

	app.onGoingBlock = app.badgerDB.NewTransaction(true)

	for i, txBytes := range req.Txs {
		var commit repository.AuditCommit
		if err := json.Unmarshal(txBytes, &commit); err != nil {
			txResults[i] = &abcitypes.ExecTxResult{
				Code: 1,
				Log:  "Invalid audit commit format",
			}
			continue
		}

		txID := generateTxID(commit.InspectionID, commit.Status)
		txResults[i] = app.storeAuditCommit(txID, &commit, txBytes)
	}

	blockHeight := req.Height
	appHash := calculateAppHash(txResults)

	err := app.onGoingBlock.Set([]byte("last_block_height"), int64ToBytes(blockHeight))
	if err != nil {
		log.Printf("Error storing block height: %v", err)
	}

	err = app.onGoingBlock.Set([]byte("last_block_app_hash"), appHash)
	if err != nil {
		log.Printf("Error storing app hash: %v", err)
	}

	return &abcitypes.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   appHash,
	}, nil
}

// storeAuditCommit stores an audit commit in the ledger database
func (app *Application) storeAuditCommit(txID string, commit *repository.AuditCommit, rawTx []byte) *abcitypes.ExecTxResult {
	txKey := append([]byte("tx:"), []byte(txID)...)
	err := app.onGoingBlock.Set(txKey, rawTx)
	if err != nil {
		log.Printf("Error storing transaction: %v", err)
		return &abcitypes.ExecTxResult{
			Code: 3,
			Log:  fmt.Sprintf("Database error: %v", err),
		}
	}

	// Latest terminal record wins per inspection
	auditKey := []byte("audit:" + commit.InspectionID)
	err = app.onGoingBlock.Set(auditKey, rawTx)
	if err != nil {
		log.Printf("Error storing audit record: %v", err)
	}

	// Secondary key by shipping instruction
	instructionKey := fmt.Sprintf("instruction:%s:inspection:%s", commit.ShippingInstructionID, commit.InspectionID)
	err = app.onGoingBlock.Set([]byte(instructionKey), rawTx)
	if err != nil {
		log.Printf("Error storing instruction index: %v", err)
	}

	events := []abcitypes.Event{
		{
			Type: "inspection_audit",
			Attributes: []abcitypes.EventAttribute{
				{Key: "inspection_id", Value: commit.InspectionID, Index: true},
				{Key: "shipping_instruction_id", Value: commit.ShippingInstructionID, Index: true},
				{Key: "product_id", Value: commit.ProductID, Index: true},
				{Key: "status", Value: commit.Status, Index: true},
				{Key: "tx_id", Value: txID, Index: true},
			},
		},
	}

	return &abcitypes.ExecTxResult{
		Code:   0,
		Data:   []byte(txID),
		Log:    commit.Status,
		Events: events,
	}
}

// Commit implements the ABCI Commit method
func (app *Application) Commit(_ context.Context, commit *abcitypes.CommitRequest) (*abcitypes.CommitResponse, error) {
	err := app.onGoingBlock.Commit()
	if err != nil {
		log.Printf("Error committing block: %v", err)
	}
	return &abcitypes.CommitResponse{}, nil
}

// Placeholder implementations for other ABCI methods
func (app *Application) ListSnapshots(_ context.Context, snapshots *abcitypes.ListSnapshotsRequest) (*abcitypes.ListSnapshotsResponse, error) {
	return &abcitypes.ListSnapshotsResponse{}, nil
}

func (app *Application) OfferSnapshot(_ context.Context, snapshot *abcitypes.OfferSnapshotRequest) (*abcitypes.OfferSnapshotResponse, error) {
	return &abcitypes.OfferSnapshotResponse{}, nil
}

func (app *Application) LoadSnapshotChunk(_ context.Context, chunk *abcitypes.LoadSnapshotChunkRequest) (*abcitypes.LoadSnapshotChunkResponse, error) {
	return &abcitypes.LoadSnapshotChunkResponse{}, nil
}

func (app *Application) ApplySnapshotChunk(_ context.Context, chunk *abcitypes.ApplySnapshotChunkRequest) (*abcitypes.ApplySnapshotChunkResponse, error) {
	return &abcitypes.ApplySnapshotChunkResponse{
		Result: abcitypes.APPLY_SNAPSHOT_CHUNK_RESULT_ACCEPT,
	}, nil
}

func (app *Application) ExtendVote(_ context.Context, extend *abcitypes.ExtendVoteRequest) (*abcitypes.ExtendVoteResponse, error) {
	return &abcitypes.ExtendVoteResponse{}, nil
}

func (app *Application) VerifyVoteExtension(_ context.Context, verify *abcitypes.VerifyVoteExtensionRequest) (*abcitypes.VerifyVoteExtensionResponse, error) {
	return &abcitypes.VerifyVoteExtensionResponse{}, nil
}

// Helper functions

// generateTxID derives a ledger transaction ID for an audit commit
func generateTxID(inspectionID, status string) string {
	hash := sha256.Sum256([]byte(inspectionID + status))
	return hex.EncodeToString(hash[:])
}

// calculateAppHash calculates the application hash for the current block
func calculateAppHash(txResults []*abcitypes.ExecTxResult) []byte {
	allData := make([]byte, 0)
	for _, result := range txResults {
		allData = append(allData, result.Data...)
	}
	hash := sha256.Sum256(allData)
	return hash[:]
}

// int64ToBytes converts an int64 to bytes
func int64ToBytes(i int64) []byte {
	buf := make([]byte, 8)
	buf[0] = byte(i >> 56)
	buf[1] = byte(i >> 48)
	buf[2] = byte(i >> 40)
	buf[3] = byte(i >> 32)
	buf[4] = byte(i >> 24)
	buf[5] = byte(i >> 16)
	buf[6] = byte(i >> 8)
	buf[7] = byte(i)
	return buf
}

// bytesToInt64 converts bytes to an int64
func bytesToInt64(buf []byte) int64 {
	if len(buf) < 8 {
		return 0
	}
	return int64(buf[0])<<56 |
		int64(buf[1])<<48 |
		int64(buf[2])<<40 |
		int64(buf[3])<<32 |
		int64(buf[4])<<24 |
		int64(buf[5])<<16 |
		int64(buf[6])<<8 |
		int64(buf[7])
}
