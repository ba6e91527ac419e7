// Command drift_check compares off-chain mirror rows against the canonical
// on-chain records and reports divergence. Intended to run from cron next to
// the reconciler: the reconciler repairs interrupted writes, this script
// catches anything that slipped past it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
	"github.com/noah-isme/credchain-api/pkg/database"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

type finding struct {
	Kind    string
	Key     string
	Detail  string
	IsError bool
}

func main() {
	var (
		limit   int
		stale   time.Duration
		timeout time.Duration
	)

	flag.IntVar(&limit, "limit", 200, "Maximum rows to check per table")
	flag.DurationVar(&stale, "stale", time.Hour, "Age after which a non-terminal write intent is reported")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	provider := chain.NewRPCProvider(cfg.Chain, zap.NewNop())
	registry := chain.NewRegistry(provider, cfg.Chain, zap.NewNop())
	transcripts := chain.NewTranscripts(provider, cfg.Chain, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var findings []finding
	findings = append(findings, checkInstitutions(ctx, db, registry, limit)...)
	findings = append(findings, checkCredentials(ctx, db, transcripts, limit)...)
	findings = append(findings, checkIntents(ctx, db, stale)...)

	printReport(findings)

	drift := 0
	for _, f := range findings {
		if !f.IsError {
			drift++
		}
	}
	fmt.Printf("Drift findings: %d\n", drift)
	if drift > 0 {
		os.Exit(1)
	}
}

type dbLike interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func checkInstitutions(ctx context.Context, db dbLike, registry *chain.Registry, limit int) []finding {
	var rows []models.Institution
	query := `SELECT id, address, name, country, status, registered_by, transaction_hash, version, created_at, suspended_at, reactivated_at
	          FROM institutions ORDER BY created_at DESC LIMIT $1`
	if err := db.SelectContext(ctx, &rows, query, limit); err != nil {
		return []finding{{Kind: "institution", Key: "query", Detail: err.Error(), IsError: true}}
	}

	var findings []finding
	for _, inst := range rows {
		onChain, err := registry.Details(ctx, inst.Address)
		if err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
				findings = append(findings, finding{Kind: "institution", Key: inst.Address, Detail: "mirrored off chain but absent from the registry"})
				continue
			}
			findings = append(findings, finding{Kind: "institution", Key: inst.Address, Detail: err.Error(), IsError: true})
			continue
		}
		if onChain.Name != inst.Name {
			findings = append(findings, finding{Kind: "institution", Key: inst.Address,
				Detail: fmt.Sprintf("name mismatch: chain %q, mirror %q", onChain.Name, inst.Name)})
		}
	}
	return findings
}

func checkCredentials(ctx context.Context, db dbLike, transcripts *chain.Transcripts, limit int) []finding {
	var rows []models.Credential
	query := `SELECT id, chain_id, student_id, student_address, institution_address, degree_type, graduation_year, document_hash, ipfs_cid, ipfs_url, transaction_hash, block_number, status, created_at, revoked_at, revocation_reason
	          FROM credentials WHERE chain_id IS NOT NULL ORDER BY created_at DESC LIMIT $1`
	if err := db.SelectContext(ctx, &rows, query, limit); err != nil {
		return []finding{{Kind: "credential", Key: "query", Detail: err.Error(), IsError: true}}
	}

	var findings []finding
	for _, cred := range rows {
		onChain, err := transcripts.Verify(ctx, cred.IPFSCID)
		if err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
				findings = append(findings, finding{Kind: "credential", Key: cred.IPFSCID, Detail: "mirrored off chain but absent from the contract"})
				continue
			}
			findings = append(findings, finding{Kind: "credential", Key: cred.IPFSCID, Detail: err.Error(), IsError: true})
			continue
		}
		if onChain.DocumentHash != cred.DocumentHash {
			findings = append(findings, finding{Kind: "credential", Key: cred.IPFSCID,
				Detail: fmt.Sprintf("document hash mismatch: chain %s, mirror %s", onChain.DocumentHash, cred.DocumentHash)})
		}
		if onChain.Status.String() != string(cred.Status) {
			findings = append(findings, finding{Kind: "credential", Key: cred.IPFSCID,
				Detail: fmt.Sprintf("status mismatch: chain %s, mirror %s", onChain.Status, cred.Status)})
		}
	}
	return findings
}

func checkIntents(ctx context.Context, db dbLike, stale time.Duration) []finding {
	var rows []models.WriteIntent
	query := `SELECT id, kind, status, payload, transaction_hash, block_number, attempts, last_error, created_at, updated_at
	          FROM write_intents WHERE status IN ($1, $2) AND updated_at < $3 ORDER BY updated_at ASC`
	cutoff := time.Now().UTC().Add(-stale)
	if err := db.SelectContext(ctx, &rows, query, models.IntentPending, models.IntentChainConfirmed, cutoff); err != nil {
		return []finding{{Kind: "intent", Key: "query", Detail: err.Error(), IsError: true}}
	}

	findings := make([]finding, 0, len(rows))
	for _, intent := range rows {
		findings = append(findings, finding{Kind: "intent", Key: intent.ID,
			Detail: fmt.Sprintf("%s stuck at %s since %s", intent.Kind, intent.Status, intent.UpdatedAt.Format(time.RFC3339))})
	}
	return findings
}

func printReport(findings []finding) {
	fmt.Println("Chain Drift Report")
	fmt.Println("==================")
	if len(findings) == 0 {
		fmt.Println("No drift detected.")
		return
	}
	for _, f := range findings {
		status := "DRIFT"
		if f.IsError {
			status = "ERROR"
		}
		fmt.Printf("[%s] %s %s\n", status, f.Kind, f.Key)
		fmt.Printf("  %s\n", f.Detail)
	}
}
