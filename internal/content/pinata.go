// Package content uploads credential documents to the IPFS pinning service.
// The store is content addressed: re-uploading identical bytes yields the same
// CID, so a retried issuance never creates duplicate pins.
package content

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

const pinEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"

// PinResult describes a pinned file.
type PinResult struct {
	CID       string `json:"cid"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

// Store is the content store contract used by the credential service.
type Store interface {
	Pin(ctx context.Context, filename string, data []byte, keyvalues map[string]string) (*PinResult, error)
	GatewayURL(cid string) string
}

// Observer receives upload timings.
type Observer interface {
	ObservePin(duration time.Duration)
}

// PinataClient pins files through the Pinata HTTP API.
type PinataClient struct {
	jwt      string
	gateway  string
	endpoint string
	client   *http.Client
	observer Observer
	logger   *zap.Logger
}

// NewPinataClient builds a client from configuration.
func NewPinataClient(cfg config.PinataConfig, logger *zap.Logger) *PinataClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PinataClient{
		jwt:      cfg.JWT,
		gateway:  cfg.GatewayURL,
		endpoint: pinEndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		logger:   logger,
	}
}

// SetObserver installs the upload timing hook. Must be called before the
// client is shared across goroutines.
func (p *PinataClient) SetObserver(o Observer) {
	p.observer = o
}

// Pin uploads the file and returns its content identifier.
func (p *PinataClient) Pin(ctx context.Context, filename string, data []byte, keyvalues map[string]string) (*PinResult, error) {
	if p.observer != nil {
		start := time.Now()
		defer func() {
			p.observer.ObservePin(time.Since(start))
		}()
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	meta := map[string]interface{}{"name": filename}
	if len(keyvalues) > 0 {
		meta["keyvalues"] = keyvalues
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal pin metadata: %w", err)
	}
	if err := writer.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return nil, fmt.Errorf("write pin metadata: %w", err)
	}
	if err := writer.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return nil, fmt.Errorf("write pin options: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "content store unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pin response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.New(appErrors.ErrInternal.Code, http.StatusBadGateway,
			fmt.Sprintf("content store rejected upload: status %d", resp.StatusCode))
	}

	var pinResp struct {
		IpfsHash  string `json:"IpfsHash"`
		PinSize   int64  `json:"PinSize"`
		Timestamp string `json:"Timestamp"`
	}
	if err := json.Unmarshal(raw, &pinResp); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	if pinResp.IpfsHash == "" {
		return nil, fmt.Errorf("content store returned empty cid")
	}

	p.logger.Info("file pinned",
		zap.String("cid", pinResp.IpfsHash),
		zap.Int64("size", pinResp.PinSize),
	)
	return &PinResult{
		CID:       pinResp.IpfsHash,
		Size:      pinResp.PinSize,
		Timestamp: pinResp.Timestamp,
		URL:       p.GatewayURL(pinResp.IpfsHash),
	}, nil
}

// GatewayURL renders the public gateway location for a CID.
func (p *PinataClient) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", p.gateway, cid)
}

// DocumentHash computes the deterministic content hash persisted on chain.
// Same file, same hash.
func DocumentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}
