package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
)

// Transcripts wraps the Transcript Manager contract.
type Transcripts struct {
	provider Provider
	address  string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewTranscripts builds the transcript manager client.
func NewTranscripts(provider Provider, cfg config.ChainConfig, logger *zap.Logger) *Transcripts {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ConfirmationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Transcripts{provider: provider, address: cfg.TranscriptManagerAddress, timeout: timeout, logger: logger}
}

// IssueArgs carries the issuance transaction arguments.
type IssueArgs struct {
	StudentID      string
	IPFSCID        string
	DocumentHash   string
	DegreeType     models.DegreeType
	StudentAddress string
	GraduationYear int
}

// Issue submits the issuance transaction and waits for confirmation.
func (t *Transcripts) Issue(ctx context.Context, session *Session, args IssueArgs) (*Receipt, error) {
	tx := Tx{
		From:     session.Account,
		Contract: t.address,
		Function: "issueTranscripts",
		Args: []interface{}{
			args.StudentID,
			args.IPFSCID,
			args.DocumentHash,
			int(args.DegreeType),
			args.StudentAddress,
			args.GraduationYear,
		},
	}
	return submit(ctx, t.provider, tx, t.timeout, t.logger, "issue transcript")
}

// Invalidate revokes the transcript on chain.
func (t *Transcripts) Invalidate(ctx context.Context, session *Session, transcriptID uint64) (*Receipt, error) {
	tx := Tx{
		From:     session.Account,
		Contract: t.address,
		Function: "inValidateTranscript",
		Args:     []interface{}{transcriptID},
	}
	return submit(ctx, t.provider, tx, t.timeout, t.logger, "invalidate transcript")
}

// Verify resolves a transcript by its content identifier. This is the trust
// anchor for third-party verification: the result reflects chain state, not
// the off-chain mirror.
func (t *Transcripts) Verify(ctx context.Context, cid string) (*models.ChainCredential, error) {
	var raw rawRecord
	call := Call{Contract: t.address, Function: "verifyTranscript", Args: []interface{}{cid}}
	if err := t.provider.CallContract(ctx, call, &raw); err != nil {
		return nil, classify(err, "verify transcript")
	}
	return decodeCredential(raw)
}

// Details resolves a transcript by its on-chain numeric id.
func (t *Transcripts) Details(ctx context.Context, transcriptID uint64) (*models.ChainCredential, error) {
	var raw rawRecord
	call := Call{Contract: t.address, Function: "getTranscriptDetails", Args: []interface{}{transcriptID}}
	if err := t.provider.CallContract(ctx, call, &raw); err != nil {
		return nil, classify(err, "get transcript details")
	}
	return decodeCredential(raw)
}

// ByStudent lists the on-chain transcripts held by a student address.
func (t *Transcripts) ByStudent(ctx context.Context, studentAddress string) ([]models.ChainCredential, error) {
	var raws []rawRecord
	call := Call{Contract: t.address, Function: "getStudentTranscripts", Args: []interface{}{studentAddress}}
	if err := t.provider.CallContract(ctx, call, &raws); err != nil {
		return nil, classify(err, "get student transcripts")
	}
	out := make([]models.ChainCredential, 0, len(raws))
	for _, raw := range raws {
		cred, err := decodeCredential(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}
	return out, nil
}

// CIDExists checks the duplicate-content guard mapping before a transaction
// is wasted on a doomed issuance.
func (t *Transcripts) CIDExists(ctx context.Context, cid string) (bool, error) {
	var exists bool
	call := Call{Contract: t.address, Function: "existingCIDs", Args: []interface{}{cid}}
	if err := t.provider.CallContract(ctx, call, &exists); err != nil {
		return false, classify(err, "check cid")
	}
	return exists, nil
}

// Count reads the total number of issued transcripts.
func (t *Transcripts) Count(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	call := Call{Contract: t.address, Function: "transcriptCount"}
	if err := t.provider.CallContract(ctx, call, &raw); err != nil {
		return 0, classify(err, "transcript count")
	}
	return coerceUint64(raw, "transcriptCount")
}

func decodeCredential(raw rawRecord) (*models.ChainCredential, error) {
	cred := &models.ChainCredential{}
	var err error
	if cred.ID, err = raw.uint64Field("id"); err != nil {
		return nil, decodeErr(err)
	}
	if cred.StudentID, err = raw.stringField("studentId"); err != nil {
		return nil, decodeErr(err)
	}
	if cred.IssuedBy, err = raw.stringField("issuedBy"); err != nil {
		return nil, decodeErr(err)
	}
	if cred.DocumentHash, err = raw.stringField("documenthash"); err != nil {
		return nil, decodeErr(err)
	}
	if cred.IPFSCID, err = raw.stringField("ipfscid"); err != nil {
		return nil, decodeErr(err)
	}
	if cred.StudentAddress, err = raw.stringField("studentAddress"); err != nil {
		return nil, decodeErr(err)
	}

	degree, err := raw.intField("degreeType")
	if err != nil {
		return nil, decodeErr(err)
	}
	cred.DegreeType = models.DegreeType(degree)
	if !cred.DegreeType.Valid() {
		return nil, decodeErr(fmt.Errorf("degree type %d out of range", degree))
	}

	status, err := raw.intField("status")
	if err != nil {
		return nil, decodeErr(err)
	}
	cred.Status = models.ChainCredentialStatus(status)
	if !cred.Status.Valid() {
		return nil, decodeErr(fmt.Errorf("status %d out of range", status))
	}

	issued, err := raw.uint64Field("dateIssued")
	if err != nil {
		return nil, decodeErr(err)
	}
	cred.DateIssued = int64(issued)

	if cred.GraduationYear, err = raw.intField("graduationyear"); err != nil {
		return nil, decodeErr(err)
	}
	return cred, nil
}
