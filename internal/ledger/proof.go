package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/store"
)

// historyPageSize bounds each wallet-history read during reconstruction.
const historyPageSize = 100

// Reconstructor rebuilds verifiable proofs from the wallet's transaction
// history, correlating on-ledger hash prefixes with locally persisted
// action records.
type Reconstructor struct {
	Client     *Client
	Namespace  string
	ActionRepo *store.ActionRepo
	DB         *sql.DB
}

// Proofs scans up to maxTx transactions of wallet history and returns a
// proof for every memo matching this agent's namespace. Memos whose hash
// prefix resolves to a local action record carry its full reasoning and
// verified=true; unrelated ledger traffic is skipped.
func (r *Reconstructor) Proofs(ctx context.Context, maxTx int) ([]domain.Proof, error) {
	var proofs []domain.Proof
	before := ""

	for scanned := 0; scanned < maxTx; {
		limit := historyPageSize
		if remaining := maxTx - scanned; remaining < limit {
			limit = remaining
		}

		txs, err := r.Client.Signatures(ctx, limit, before)
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			break
		}

		for _, tx := range txs {
			if tx.Err != nil {
				continue
			}
			payload, err := ParsePayload(r.Namespace, tx.Memo)
			if err != nil {
				continue
			}

			proof := domain.Proof{
				TxSignature:  tx.Signature,
				HashPrefix:   payload.HashPrefix,
				DeclaredType: payload.Type,
				DeclaredText: payload.Summary,
				Timestamp:    payload.Timestamp,
				Verified:     true,
			}

			rec, err := r.ActionRepo.GetByHashPrefix(ctx, r.DB, payload.HashPrefix)
			switch {
			case err == nil:
				proof.ActionID = rec.ID
				proof.FullReasoning = rec.Summary
				if reasoning, ok := rec.Metadata["reasoning"]; ok {
					proof.FullReasoning = reasoning
				}
			case errors.Is(err, domain.ErrActionNotFound):
				// On-ledger commitment with no local record: still a valid
				// proof of the declared fields, just without full reasoning.
			default:
				return nil, err
			}

			proofs = append(proofs, proof)
		}

		scanned += len(txs)
		before = txs[len(txs)-1].Signature
	}

	return proofs, nil
}

// ProofFor reconstructs the proof for a single action record. Records with
// no ledger reference, or whose referenced transaction cannot be found,
// return an unverified proof: executed but unverifiable is a lesser status
// than did-not-happen, not an error.
func (r *Reconstructor) ProofFor(ctx context.Context, rec domain.ActionRecord) (*domain.Proof, error) {
	proof := &domain.Proof{
		HashPrefix:    Prefix(rec.ContentHash),
		DeclaredType:  rec.Type,
		DeclaredText:  rec.Summary,
		Timestamp:     rec.CreatedAt,
		ActionID:      rec.ID,
		FullReasoning: rec.Metadata["reasoning"],
		Verified:      false,
	}
	if rec.LedgerTxRef == "" {
		return proof, nil
	}

	tx, err := r.Client.Transaction(ctx, rec.LedgerTxRef)
	if err != nil {
		return proof, nil
	}
	payload, err := ParsePayload(r.Namespace, tx.Memo)
	if err != nil {
		return proof, nil
	}
	if payload.HashPrefix != Prefix(rec.ContentHash) {
		return proof, nil
	}

	proof.TxSignature = tx.Signature
	proof.DeclaredText = payload.Summary
	proof.Verified = true
	return proof, nil
}
